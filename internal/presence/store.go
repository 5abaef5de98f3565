package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/data"
)

// Store is the recognition-facing entry point onto the relational presence
// table: it decides, via CooldownTable, whether a recognized face is worth
// another database write, then delegates to data.PresenceModel for the
// actual upsert. Mirrors the Model{DB DBTX} wrapper shape used throughout
// internal/data, kept one layer up so the cooldown policy lives outside the
// repository.
type Store struct {
	presence *data.PresenceModel
	cooldown *CooldownTable
}

func NewStore(presence *data.PresenceModel, cooldown *CooldownTable) *Store {
	return &Store{presence: presence, cooldown: cooldown}
}

// Observe records a recognized-student sighting. A pair that is hot in the
// cooldown table is skipped; otherwise the relational upsert runs and the
// pair is marked, collapsing a 30Hz stream of detections on the same
// student into one write roughly every COOLDOWN_SECONDS. wrote reports
// whether the upsert actually ran, which the Dispatcher uses to decide
// whether this sighting belongs in a presence_update's new_recognitions
// list.
func (s *Store) Observe(ctx context.Context, roomID, cameraID, studentID uuid.UUID, seenAt time.Time, confidence float64) (wrote bool, err error) {
	if s.cooldown.IsHot(roomID, studentID) {
		return false, nil
	}
	if err := s.presence.Upsert(ctx, studentID, roomID, cameraID, seenAt, confidence); err != nil {
		return false, err
	}
	s.cooldown.Mark(roomID, studentID)
	return true, nil
}

func (s *Store) RoomRoster(ctx context.Context, roomID uuid.UUID, staleAfter time.Duration) ([]*data.Presence, error) {
	return s.presence.GetByRoom(ctx, roomID, false, staleAfter)
}

func (s *Store) AllActive(ctx context.Context, staleAfter time.Duration) ([]*data.Presence, error) {
	return s.presence.GetAll(ctx, staleAfter)
}

func (s *Store) StudentLocation(ctx context.Context, studentID uuid.UUID) (*data.Presence, error) {
	return s.presence.GetStudentLocation(ctx, studentID)
}

// Sweep clears rows that have gone stale, returning the affected student
// ids so callers (the Reaper) can broadcast their departure.
func (s *Store) Sweep(ctx context.Context, staleAfter time.Duration) ([]uuid.UUID, error) {
	return s.presence.DeleteStale(ctx, staleAfter)
}
