package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/data"
)

type AttendanceHandler struct {
	Model *data.AttendanceModel
}

func NewAttendanceHandler(m *data.AttendanceModel) *AttendanceHandler {
	return &AttendanceHandler{Model: m}
}

// GET /api/v1/attendance?student_id=&date=
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var studentID *uuid.UUID
	if raw := r.URL.Query().Get("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid student_id")
			return
		}
		studentID = &id
	}

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = &d
	}

	list, err := h.Model.List(r.Context(), studentID, date, 200, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": list})
}
