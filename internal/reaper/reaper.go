// Package reaper runs the periodic stale-presence sweep described in
// spec §4.8: on an interval, delete presence rows past the timeout and
// rebroadcast the affected rooms (and the global channel) so dashboards
// converge even if a camera stopped producing frames mid-session.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/broadcast"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/metrics"
	"github.com/technosupport/campus-presence/internal/presence"
)

type Reaper struct {
	store    *presence.Store
	guests   *presence.GuestTracker
	rooms    *data.RoomModel
	hub      *broadcast.Hub
	metrics  *metrics.Collector
	interval time.Duration
	timeout  time.Duration
}

func New(store *presence.Store, guests *presence.GuestTracker, rooms *data.RoomModel, hub *broadcast.Hub, m *metrics.Collector, intervalSeconds, timeoutSeconds int) *Reaper {
	return &Reaper{
		store:    store,
		guests:   guests,
		rooms:    rooms,
		hub:      hub,
		metrics:  m,
		interval: time.Duration(intervalSeconds) * time.Second,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
	}
}

// Run blocks, ticking at Reaper's configured interval until ctx is
// cancelled. Errors are logged; the loop continues, matching spec's
// "errors are logged, loop continues" requirement.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	removed, err := r.store.Sweep(ctx, r.timeout)
	if err != nil {
		log.Printf("reaper: sweep failed: %v", err)
		return
	}
	if r.metrics != nil {
		r.metrics.RecordReaperSweep(len(removed))
	}
	if len(removed) == 0 {
		return
	}

	affectedRooms, err := r.roomsFor(ctx, removed)
	if err != nil {
		log.Printf("reaper: room lookup after sweep failed: %v", err)
		return
	}
	for _, roomID := range affectedRooms {
		r.broadcastRoom(ctx, roomID)
	}
}

// roomsFor collects the distinct rooms whose rosters may have changed.
// DeleteStale already removed the rows, so we can't re-read the student's
// old room; instead every currently-active room is refreshed, bounded by
// the number of rooms (cheap relative to the sweep interval of 10s+).
func (r *Reaper) roomsFor(ctx context.Context, removed []uuid.UUID) ([]uuid.UUID, error) {
	_ = removed
	list, err := r.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(list))
	for _, room := range list {
		out = append(out, room.ID)
	}
	return out, nil
}

func (r *Reaper) broadcastRoom(ctx context.Context, roomID uuid.UUID) {
	if r.hub == nil {
		return
	}
	rows, err := r.store.RoomRoster(ctx, roomID, r.timeout)
	if err != nil {
		log.Printf("reaper: roster refresh failed for room %s: %v", roomID, err)
		return
	}

	occupants := make([]broadcast.Occupant, 0, len(rows))
	for _, row := range rows {
		occupants = append(occupants, broadcast.Occupant{
			StudentID:  row.StudentID,
			StudentNo:  row.StudentNo,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			LastSeen:   row.LastSeenAt.UTC().Format(time.RFC3339),
			Confidence: row.LastConfidence,
		})
	}

	guestCount := r.guests.ActiveCount(roomID)
	roomName := ""
	if room, err := r.rooms.GetByID(ctx, roomID); err == nil {
		roomName = room.Name
	}

	evt := broadcast.PresenceEvent{
		Type:        "presence_update",
		RoomID:      roomID,
		RoomName:    roomName,
		Occupants:   occupants,
		TotalCount:  len(occupants),
		GuestCount:  guestCount,
		TotalPeople: len(occupants) + guestCount,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	r.hub.PublishJSON(broadcast.NSRoomPresence, roomID.String(), evt)
	r.hub.PublishJSON(broadcast.NSGlobalPresence, "", evt)
}
