// Package rooms is the administrative service layer over data.RoomModel,
// following the same Repository-interface-plus-audit shape as
// internal/cameras.Service.
package rooms

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
	ErrNameRequired = errors.New("room name required")
	ErrNameTooLong  = errors.New("room name too long")
)

type Repository interface {
	Create(ctx context.Context, r *data.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*data.Room, error)
	Update(ctx context.Context, r *data.Room) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*data.Room, error)
}

// StreamStopper lets the Service terminate every active stream for a room
// when the room itself is deleted, without importing internal/stream.
type StreamStopper interface {
	StopRoomCameras(roomID uuid.UUID) int
}

type PresenceClearer interface {
	ClearRoom(ctx context.Context, roomID uuid.UUID) error
}

type Auditor interface {
	WriteEvent(ctx context.Context, evt audit.AuditEvent) error
}

type Service struct {
	repo     Repository
	streams  StreamStopper
	presence PresenceClearer
	auditor  Auditor
}

func NewService(repo Repository, streams StreamStopper, presence PresenceClearer, aud Auditor) *Service {
	return &Service{repo: repo, streams: streams, presence: presence, auditor: aud}
}

func (s *Service) CreateRoom(ctx context.Context, r *data.Room) error {
	if err := validateName(r.Name); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	s.audit(ctx, "room.create", r.ID, map[string]any{"name": r.Name})
	return nil
}

func (s *Service) UpdateRoom(ctx context.Context, r *data.Room) error {
	if err := validateName(r.Name); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return err
	}
	s.audit(ctx, "room.update", r.ID, nil)
	return nil
}

func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if s.streams != nil {
		s.streams.StopRoomCameras(id)
	}
	if s.presence != nil {
		_ = s.presence.ClearRoom(ctx, id)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "room.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*data.Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*data.Room, error) {
	return s.repo.List(ctx)
}

func validateName(name string) error {
	if len(name) == 0 {
		return ErrNameRequired
	}
	if len(name) > 120 {
		return ErrNameTooLong
	}
	return nil
}

func (s *Service) audit(ctx context.Context, action string, targetID uuid.UUID, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	var raw json.RawMessage
	if meta != nil {
		raw, _ = json.Marshal(meta)
	}
	s.auditor.WriteEvent(ctx, audit.AuditEvent{
		EventID:    uuid.New(),
		Action:     action,
		Result:     "success",
		TargetID:   targetID.String(),
		TargetType: "room",
		CreatedAt:  time.Now(),
		Metadata:   raw,
	})
}
