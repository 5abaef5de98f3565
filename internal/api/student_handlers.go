package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/students"
)

const maxEnrollmentImageBytes = 5 << 20 // 5MB, matching the original upload bound

type StudentHandler struct {
	Service *students.Service
}

func NewStudentHandler(svc *students.Service) *StudentHandler {
	return &StudentHandler{Service: svc}
}

// POST /api/v1/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentNumber string `json:"student_number"`
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
		GroupName     string `json:"group_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	st := &data.Student{
		StudentNo: req.StudentNumber,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		GroupName: req.GroupName,
	}
	if err := h.Service.Create(r.Context(), st); err != nil {
		if errors.Is(err, data.ErrStudentNumberDuplicate) {
			respondError(w, http.StatusBadRequest, "student number already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, st)
}

// GET /api/v1/students/{id}
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	st, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status, err := h.Service.EnrollmentStatus(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student":             st,
		"enrollment_count":    status.Count,
		"enrollment_ready":    status.Ready,
	})
}

// GET /api/v1/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), 200, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": list})
}

// DELETE /api/v1/students/{id}
func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/students/{id}/images
func (h *StudentHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEnrollmentImageBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image payload too large or unreadable")
		return
	}
	if len(raw) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "empty image payload")
		return
	}

	status, err := h.Service.AddEnrollmentImage(r.Context(), id, raw)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "student not found")
		case errors.Is(err, students.ErrMaxEmbeddings):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, students.ErrNoFaceInImage), errors.Is(err, students.ErrInvalidImage):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollment_count": status.Count,
		"enrollment_ready": status.Ready,
	})
}
