package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/data"
)

type CameraProvider interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error)
}

type CredentialHandler struct {
	CredService   *cameras.CredentialService
	CameraService CameraProvider
}

func NewCredentialHandler(credSvc *cameras.CredentialService, camSvc CameraProvider) *CredentialHandler {
	return &CredentialHandler{CredService: credSvc, CameraService: camSvc}
}

// resolveCamera returns the camera ID in the path. It responds 400 if the ID
// is missing or not a valid UUID, and 404 if it doesn't correspond to a
// known camera.
func (h *CredentialHandler) resolveCamera(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		respondError(w, http.StatusBadRequest, "Missing Camera ID")
		return uuid.Nil, false
	}
	cameraID, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid Camera ID")
		return uuid.Nil, false
	}

	if _, err := h.CameraService.GetByID(r.Context(), cameraID); err != nil {
		respondError(w, http.StatusNotFound, "Camera not found")
		return uuid.Nil, false
	}

	return cameraID, true
}

func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	cameraID, ok := h.resolveCamera(w, r)
	if !ok {
		return
	}

	var input cameras.CredentialInput
	r.Body = http.MaxBytesReader(w, r.Body, 8192) // 8KB safety
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if input.Username == "" {
		respondError(w, http.StatusBadRequest, "Username required")
		return
	}
	if len(input.Username) > 128 || len(input.Password) > 128 {
		respondError(w, http.StatusBadRequest, "Credentials too long")
		return
	}

	if err := h.CredService.SetCredentials(r.Context(), cameraID, input); err != nil {
		if errors.Is(err, cameras.ErrCredentialTooLarge) {
			respondError(w, http.StatusBadRequest, "Payload too large")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	cameraID, ok := h.resolveCamera(w, r)
	if !ok {
		return
	}

	reveal := r.URL.Query().Get("reveal") == "true"

	out, found, err := h.CredService.GetCredentials(r.Context(), cameraID, reveal)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal Check Failed")
		return
	}

	if !found {
		respondError(w, http.StatusNotFound, "Credentials not found")
		return
	}

	respondJSON(w, http.StatusOK, out)
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cameraID, ok := h.resolveCamera(w, r)
	if !ok {
		return
	}

	if err := h.CredService.DeleteCredentials(r.Context(), cameraID); err != nil {
		respondError(w, http.StatusInternalServerError, "Delete Failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
