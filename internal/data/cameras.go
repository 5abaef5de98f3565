package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Camera represents an RTSP capture device assigned to a Room.
type Camera struct {
	ID           uuid.UUID  `json:"id"`
	RoomID       uuid.UUID  `json:"room_id"`
	Name         string     `json:"name"`
	RTSPURL      string     `json:"rtsp_url_sanitized"`
	IsEnabled    bool       `json:"is_enabled"`
	LastStatus   string     `json:"last_status"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type CameraModel struct {
	DB DBTX
}

func (m CameraModel) Create(ctx context.Context, c *Camera) error {
	query := `
		INSERT INTO cameras (room_id, name, rtsp_url_sanitized, is_enabled, last_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return m.DB.QueryRowContext(ctx, query,
		c.RoomID, c.Name, c.RTSPURL, c.IsEnabled, c.LastStatus,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (m CameraModel) GetByID(ctx context.Context, id uuid.UUID) (*Camera, error) {
	query := `
		SELECT id, room_id, name, rtsp_url_sanitized, is_enabled, last_status, last_seen_at,
		       created_at, updated_at, deleted_at
		FROM cameras
		WHERE id = $1 AND deleted_at IS NULL`

	var c Camera
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.RoomID, &c.Name, &c.RTSPURL, &c.IsEnabled, &c.LastStatus, &c.LastSeenAt,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m CameraModel) Update(ctx context.Context, c *Camera) error {
	query := `
		UPDATE cameras
		SET name = $1, rtsp_url_sanitized = $2, room_id = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query, c.Name, c.RTSPURL, c.RoomID, c.ID).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m CameraModel) SetStatus(ctx context.Context, id uuid.UUID, status string, seenAt time.Time) error {
	query := `UPDATE cameras SET last_status = $1, last_seen_at = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, status, seenAt, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m CameraModel) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE cameras SET is_enabled = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, enabled, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m CameraModel) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE cameras SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CountByRoom is used to enforce MAX_CAMERAS_PER_ROOM.
func (m CameraModel) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM cameras WHERE room_id = $1 AND deleted_at IS NULL`
	var count int
	err := m.DB.QueryRowContext(ctx, query, roomID).Scan(&count)
	return count, err
}

func (m CameraModel) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*Camera, error) {
	query := `
		SELECT id, room_id, name, rtsp_url_sanitized, is_enabled, last_status, last_seen_at, created_at, updated_at
		FROM cameras WHERE room_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	return m.scanList(ctx, query, roomID)
}

func (m CameraModel) ListEnabled(ctx context.Context) ([]*Camera, error) {
	query := `
		SELECT id, room_id, name, rtsp_url_sanitized, is_enabled, last_status, last_seen_at, created_at, updated_at
		FROM cameras WHERE is_enabled = true AND deleted_at IS NULL ORDER BY created_at`
	return m.scanList(ctx, query)
}

func (m CameraModel) scanList(ctx context.Context, query string, args ...any) ([]*Camera, error) {
	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		var c Camera
		if err := rows.Scan(&c.ID, &c.RoomID, &c.Name, &c.RTSPURL, &c.IsEnabled, &c.LastStatus, &c.LastSeenAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cameras = append(cameras, &c)
	}
	return cameras, nil
}
