package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Presence is the at-most-one-row-per-student "currently in this room" row.
type Presence struct {
	StudentID     uuid.UUID  `json:"student_id"`
	RoomID        *uuid.UUID `json:"room_id"`
	CameraID      *uuid.UUID `json:"camera_id"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	LastConfidence float64   `json:"last_confidence"`

	// Joined display fields, populated by GetByRoom/GetStudentLocation.
	StudentNo string `json:"student_number,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	RoomName  string `json:"room_name,omitempty"`
}

type PresenceModel struct {
	DB DBTX
}

// Upsert writes the single presence row for a student. A prior row for a
// different room is replaced, not duplicated.
func (m PresenceModel) Upsert(ctx context.Context, studentID, roomID, cameraID uuid.UUID, t time.Time, confidence float64) error {
	query := `
		INSERT INTO presence (student_id, room_id, camera_id, last_seen_at, last_confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			room_id = EXCLUDED.room_id,
			camera_id = EXCLUDED.camera_id,
			last_seen_at = EXCLUDED.last_seen_at,
			last_confidence = EXCLUDED.last_confidence`
	_, err := m.DB.ExecContext(ctx, query, studentID, roomID, cameraID, t, confidence)
	return err
}

// GetByRoom returns active (or, if includeStale, all) presence rows for a
// room, joined with student display fields, ordered most-recent first.
func (m PresenceModel) GetByRoom(ctx context.Context, roomID uuid.UUID, includeStale bool, staleAfter time.Duration) ([]*Presence, error) {
	query := `
		SELECT p.student_id, p.room_id, p.camera_id, p.last_seen_at, p.last_confidence,
		       s.student_number, s.first_name, s.last_name
		FROM presence p
		JOIN students s ON s.id = p.student_id
		WHERE p.room_id = $1`
	args := []any{roomID}
	if !includeStale {
		query += " AND p.last_seen_at >= $2"
		args = append(args, time.Now().Add(-staleAfter))
	}
	query += " ORDER BY p.last_seen_at DESC"

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Presence
	for rows.Next() {
		var p Presence
		if err := rows.Scan(&p.StudentID, &p.RoomID, &p.CameraID, &p.LastSeenAt, &p.LastConfidence,
			&p.StudentNo, &p.FirstName, &p.LastName); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

// GetAll returns every active presence row across all rooms, for global counts.
func (m PresenceModel) GetAll(ctx context.Context, staleAfter time.Duration) ([]*Presence, error) {
	query := `
		SELECT p.student_id, p.room_id, p.camera_id, p.last_seen_at, p.last_confidence,
		       s.student_number, s.first_name, s.last_name, COALESCE(r.name, '')
		FROM presence p
		JOIN students s ON s.id = p.student_id
		LEFT JOIN rooms r ON r.id = p.room_id
		WHERE p.last_seen_at >= $1
		ORDER BY p.last_seen_at DESC`
	rows, err := m.DB.QueryContext(ctx, query, time.Now().Add(-staleAfter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Presence
	for rows.Next() {
		var p Presence
		if err := rows.Scan(&p.StudentID, &p.RoomID, &p.CameraID, &p.LastSeenAt, &p.LastConfidence,
			&p.StudentNo, &p.FirstName, &p.LastName, &p.RoomName); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

func (m PresenceModel) GetStudentLocation(ctx context.Context, studentID uuid.UUID) (*Presence, error) {
	query := `
		SELECT p.student_id, p.room_id, p.camera_id, p.last_seen_at, p.last_confidence, COALESCE(r.name, '')
		FROM presence p
		LEFT JOIN rooms r ON r.id = p.room_id
		WHERE p.student_id = $1`
	var p Presence
	err := m.DB.QueryRowContext(ctx, query, studentID).Scan(
		&p.StudentID, &p.RoomID, &p.CameraID, &p.LastSeenAt, &p.LastConfidence, &p.RoomName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeleteStale physically removes presence rows older than staleAfter; used
// by the Reaper's redundant Presence-only sweep.
func (m PresenceModel) DeleteStale(ctx context.Context, staleAfter time.Duration) ([]uuid.UUID, error) {
	query := `DELETE FROM presence WHERE last_seen_at < $1 RETURNING student_id`
	rows, err := m.DB.QueryContext(ctx, query, time.Now().Add(-staleAfter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

// ClearRoom nulls room/camera for rows pointing at a deleted room (FK ON
// DELETE SET NULL matches the nullable-on-deletion invariant in spec).
func (m PresenceModel) ClearRoom(ctx context.Context, roomID uuid.UUID) error {
	query := `UPDATE presence SET room_id = NULL, camera_id = NULL WHERE room_id = $1`
	_, err := m.DB.ExecContext(ctx, query, roomID)
	return err
}

func (m PresenceModel) DeleteByStudent(ctx context.Context, studentID uuid.UUID) error {
	query := `DELETE FROM presence WHERE student_id = $1`
	_, err := m.DB.ExecContext(ctx, query, studentID)
	return err
}
