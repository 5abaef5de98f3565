package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/technosupport/campus-presence/internal/checkin"
)

type CheckinHandler struct {
	Service *checkin.Service
}

func NewCheckinHandler(svc *checkin.Service) *CheckinHandler {
	return &CheckinHandler{Service: svc}
}

// POST /api/v1/checkin
func (h *CheckinHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ImageBase64 == "" {
		respondError(w, http.StatusUnprocessableEntity, "invalid_image")
		return
	}

	result, err := h.Service.CheckIn(r.Context(), req.ImageBase64, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrInvalidImage):
			respondError(w, http.StatusUnprocessableEntity, "invalid_image")
		case errors.Is(err, checkin.ErrNoFace):
			respondError(w, http.StatusUnprocessableEntity, "no_face")
		case errors.Is(err, checkin.ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found")
		default:
			respondError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	payload := map[string]any{
		"status":     string(result.Outcome),
		"student_id": result.Student.ID,
		"confidence": result.Confidence,
	}
	if result.PriorTime != nil {
		payload["prior_checkin_time"] = result.PriorTime
	}
	respondJSON(w, http.StatusOK, payload)
}
