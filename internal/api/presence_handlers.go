package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/presence"
)

type PresenceHandler struct {
	Store       *presence.Store
	Guests      *presence.GuestTracker
	Rooms       *data.RoomModel
	StaleAfter  time.Duration
}

func NewPresenceHandler(store *presence.Store, guests *presence.GuestTracker, rooms *data.RoomModel, staleAfterSeconds int) *PresenceHandler {
	return &PresenceHandler{Store: store, Guests: guests, Rooms: rooms, StaleAfter: time.Duration(staleAfterSeconds) * time.Second}
}

func occupantsFrom(rows []*data.Presence) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"student_id":      row.StudentID,
			"student_number":  row.StudentNo,
			"first_name":      row.FirstName,
			"last_name":       row.LastName,
			"last_seen_at":    row.LastSeenAt,
			"last_confidence": row.LastConfidence,
		})
	}
	return out
}

// GET /api/v1/presence/rooms/{id}
func (h *PresenceHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid room id")
		return
	}

	rows, err := h.Store.RoomRoster(r.Context(), roomID, h.StaleAfter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	guestCount := 0
	if h.Guests != nil {
		guestCount = h.Guests.ActiveCount(roomID)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"room_id":      roomID,
		"occupants":    occupantsFrom(rows),
		"total_count":  len(rows),
		"guest_count":  guestCount,
		"total_people": len(rows) + guestCount,
	})
}

// GET /api/v1/presence/rooms
func (h *PresenceHandler) GetAllRooms(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.AllActive(r.Context(), h.StaleAfter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byRoom := make(map[uuid.UUID][]*data.Presence)
	for _, row := range rows {
		if row.RoomID == nil {
			continue
		}
		byRoom[*row.RoomID] = append(byRoom[*row.RoomID], row)
	}

	result := make([]map[string]any, 0, len(byRoom))
	for roomID, roomRows := range byRoom {
		guestCount := 0
		if h.Guests != nil {
			guestCount = h.Guests.ActiveCount(roomID)
		}
		roomName := ""
		if room, err := h.Rooms.GetByID(r.Context(), roomID); err == nil {
			roomName = room.Name
		}
		result = append(result, map[string]any{
			"room_id":      roomID,
			"room_name":    roomName,
			"occupants":    occupantsFrom(roomRows),
			"total_count":  len(roomRows),
			"guest_count":  guestCount,
			"total_people": len(roomRows) + guestCount,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"data": result})
}

// GET /api/v1/presence/students/{id}
func (h *PresenceHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	row, err := h.Store.StudentLocation(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "no active location for student")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student_id":      row.StudentID,
		"room_id":         row.RoomID,
		"room_name":       row.RoomName,
		"last_seen_at":    row.LastSeenAt,
		"last_confidence": row.LastConfidence,
	})
}

// GET /api/v1/presence/stats
func (h *PresenceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.AllActive(r.Context(), h.StaleAfter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rooms := make(map[uuid.UUID]struct{})
	for _, row := range rows {
		if row.RoomID != nil {
			rooms[*row.RoomID] = struct{}{}
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"active_presence_count": len(rows),
		"occupied_room_count":   len(rooms),
	})
}
