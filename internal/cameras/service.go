package cameras

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/data"
)

var (
	ErrRoomCameraLimitExceeded = errors.New("room camera limit exceeded")
	ErrNameTooLong             = errors.New("name too long")
	ErrInvalidRTSPURL          = errors.New("invalid rtsp url")
)

type Repository interface {
	Create(ctx context.Context, c *data.Camera) error
	GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error)
	Update(ctx context.Context, c *data.Camera) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, seenAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*data.Camera, error)
	ListEnabled(ctx context.Context) ([]*data.Camera, error)
}

type Auditor interface {
	WriteEvent(ctx context.Context, evt audit.AuditEvent) error
}

// StreamController lets the Service start/stop ingest when a camera is
// enabled/disabled or deleted, without importing the stream package
// directly; internal/ingest, which imports both cameras and stream,
// provides the implementation.
type StreamController interface {
	StartCamera(ctx context.Context, cameraID uuid.UUID) error
	StopCamera(cameraID uuid.UUID)
}

// MaxCamerasPerRoom is the hard ceiling no configured limit may exceed.
const MaxCamerasPerRoom = 16

type Service struct {
	repo      Repository
	creds     *CredentialService
	streams   StreamController
	auditor   Auditor
	roomLimit int
}

// NewService wires a room camera limit from config, clamped to the
// hardcoded MaxCamerasPerRoom ceiling. A non-positive roomLimit falls back
// to the ceiling itself.
func NewService(repo Repository, creds *CredentialService, streams StreamController, aud Auditor, roomLimit int) *Service {
	if roomLimit <= 0 || roomLimit > MaxCamerasPerRoom {
		roomLimit = MaxCamerasPerRoom
	}
	return &Service{repo: repo, creds: creds, streams: streams, auditor: aud, roomLimit: roomLimit}
}

// CreateCamera validates input and enforces the configured per-room camera
// limit before inserting. The RTSP URL stored here must already be
// sanitized (no embedded credentials); credentials are set separately via
// SetCredentials so they can be envelope-encrypted independent of the
// camera row.
func (s *Service) CreateCamera(ctx context.Context, c *data.Camera, creds *CredentialInput) error {
	if len(c.Name) == 0 || len(c.Name) > 120 {
		return ErrNameTooLong
	}
	if !isRTSPURL(c.RTSPURL) {
		return ErrInvalidRTSPURL
	}

	count, err := s.repo.CountByRoom(ctx, c.RoomID)
	if err != nil {
		return err
	}
	if count >= s.roomLimit {
		return ErrRoomCameraLimitExceeded
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}

	if creds != nil && s.creds != nil {
		if err := s.creds.SetCredentials(ctx, c.ID, *creds); err != nil {
			return err
		}
	}

	s.audit(ctx, "camera.create", c.ID, map[string]any{"name": c.Name, "room_id": c.RoomID})
	return nil
}

func (s *Service) UpdateCamera(ctx context.Context, c *data.Camera) error {
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	s.audit(ctx, "camera.update", c.ID, nil)
	return nil
}

func (s *Service) EnableCamera(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetEnabled(ctx, id, true); err != nil {
		return err
	}
	s.audit(ctx, "camera.enable", id, nil)
	if s.streams != nil {
		return s.streams.StartCamera(ctx, id)
	}
	return nil
}

func (s *Service) DisableCamera(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetEnabled(ctx, id, false); err != nil {
		return err
	}
	s.audit(ctx, "camera.disable", id, nil)
	if s.streams != nil {
		s.streams.StopCamera(id)
	}
	return nil
}

func (s *Service) DeleteCamera(ctx context.Context, id uuid.UUID) error {
	if s.streams != nil {
		s.streams.StopCamera(id)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if s.creds != nil {
		_ = s.creds.DeleteCredentials(ctx, id)
	}
	s.audit(ctx, "camera.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*data.Camera, error) {
	return s.repo.ListByRoom(ctx, roomID)
}

func (s *Service) ListEnabled(ctx context.Context) ([]*data.Camera, error) {
	return s.repo.ListEnabled(ctx)
}

func (s *Service) audit(ctx context.Context, action string, targetID uuid.UUID, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.WriteEvent(ctx, audit.AuditEvent{
		EventID:    uuid.New(),
		Action:     action,
		Result:     "success",
		TargetID:   targetID.String(),
		TargetType: "camera",
		CreatedAt:  time.Now(),
		Metadata:   toMeta(meta),
	})
}

func isRTSPURL(raw string) bool {
	return (len(raw) >= len("rtsp://") && raw[:7] == "rtsp://") ||
		(len(raw) >= len("rtsps://") && raw[:8] == "rtsps://")
}

func toMeta(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}
