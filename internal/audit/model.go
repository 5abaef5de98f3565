package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents a single append-only audit log entry.
type AuditEvent struct {
	ID          uuid.UUID       `json:"id"`       // DB primary key
	EventID     uuid.UUID       `json:"event_id"` // idempotency key
	ActorUserID *uuid.UUID      `json:"actor_user_id,omitempty"`
	Action      string          `json:"action"`
	TargetType  string          `json:"target_type,omitempty"`
	TargetID    string          `json:"target_id,omitempty"`
	Result      string          `json:"result"` // success/failure
	ReasonCode  string          `json:"reason_code,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	ClientIP    string          `json:"client_ip,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FailoverEvent wraps an AuditEvent for JSONL spooling when the DB write fails.
type FailoverEvent struct {
	EventID   string     `json:"event_id"`
	Payload   AuditEvent `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

// AuditFilter selects events for QueryEvents/ExportEvents.
type AuditFilter struct {
	ActorUserID *uuid.UUID
	DateFrom    *time.Time
	DateTo      *time.Time
	Result      string
	Limit       int
	Cursor      string // ID-based cursor
}

type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// EnsureRetention checks that the configured retention window is at least
// one year. This is a looser check than CheckRetentionPolicy, which requires
// MinRetentionDays.
func (s *Service) EnsureRetention(years int) error {
	if years < 1 {
		return fmt.Errorf("retention policy restriction: minimum 1 year required")
	}
	return nil
}
