package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/stream"
)

// LiveHandler serves on-demand JPEG snapshots of a camera's most recently
// decoded frame, for dashboards that want a still preview rather than the
// full binary stream over /ws/cameras/{id}/stream.
type LiveHandler struct {
	Streams *stream.Manager
}

func NewLiveHandler(m *stream.Manager) *LiveHandler {
	return &LiveHandler{Streams: m}
}

// getCameraID accepts either a chi router (chi.URLParam) or the stdlib
// Go 1.22+ ServeMux (r.PathValue), since this package is mounted under
// both depending on the route.
func getCameraID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.PathValue("id")
	}
	return id
}

// GetSnapshot serves GET /api/v1/cameras/{id}/live/snapshot.jpg
func (h *LiveHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	cameraID, err := uuid.Parse(getCameraID(r))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid camera id")
		return
	}

	frame, ok := h.Streams.GetLatestFrame(cameraID)
	if !ok {
		respondError(w, http.StatusNotFound, "no frame available for this camera")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(frame.Data)
}
