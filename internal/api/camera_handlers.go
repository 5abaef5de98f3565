package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/data"
)

type CameraHandler struct {
	Service *cameras.Service
}

func NewCameraHandler(svc *cameras.Service) *CameraHandler {
	return &CameraHandler{Service: svc}
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// POST /api/v1/cameras
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID   string `json:"room_id"`
		Name     string `json:"name"`
		RTSPURL  string `json:"rtsp_url"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid room_id")
		return
	}
	if !strings.HasPrefix(req.RTSPURL, "rtsp://") && !strings.HasPrefix(req.RTSPURL, "rtsps://") {
		respondError(w, http.StatusBadRequest, "Invalid rtsp_url")
		return
	}

	username, password := req.Username, req.Password
	if username == "" && password == "" {
		if u, p, ok := cameras.ExtractRTSPUserinfo(req.RTSPURL); ok {
			username, password = u, p
		}
	}

	c := &data.Camera{
		RoomID:     roomID,
		Name:       req.Name,
		RTSPURL:    cameras.SanitizeRTSPURL(req.RTSPURL),
		IsEnabled:  false,
		LastStatus: "unknown",
	}

	var creds *cameras.CredentialInput
	if username != "" || password != "" {
		creds = &cameras.CredentialInput{Username: username, Password: password}
	}

	if err := h.Service.CreateCamera(r.Context(), c, creds); err != nil {
		switch {
		case errors.Is(err, cameras.ErrRoomCameraLimitExceeded):
			respondError(w, http.StatusConflict, "room camera limit exceeded")
		case errors.Is(err, cameras.ErrNameTooLong), errors.Is(err, cameras.ErrInvalidRTSPURL):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// GET /api/v1/rooms/{id}/cameras
func (h *CameraHandler) ListByRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid room id")
		return
	}

	list, err := h.Service.ListByRoom(r.Context(), roomID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /api/v1/cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	cam, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "camera not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cam)
}

// PUT /api/v1/cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req struct {
		Name    string `json:"name"`
		RTSPURL string `json:"rtsp_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cam, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "camera not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cam.Name = req.Name
	cam.RTSPURL = cameras.SanitizeRTSPURL(req.RTSPURL)

	if err := h.Service.UpdateCamera(r.Context(), cam); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cam)
}

// DELETE /api/v1/cameras/{id}
func (h *CameraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := h.Service.DeleteCamera(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/cameras/{id}/start
func (h *CameraHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := h.Service.EnableCamera(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// POST /api/v1/cameras/{id}/stop
func (h *CameraHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := h.Service.DisableCamera(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// GET /api/v1/cameras/{id}/status
func (h *CameraHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	cam, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "camera not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"is_enabled":   cam.IsEnabled,
		"last_status":  cam.LastStatus,
		"last_seen_at": cam.LastSeenAt,
	})
}
