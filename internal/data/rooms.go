package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Room represents a physical space tracked for occupancy.
type Room struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Capacity  int        `json:"capacity"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type RoomModel struct {
	DB DBTX
}

func (m RoomModel) Create(ctx context.Context, r *Room) error {
	query := `
		INSERT INTO rooms (name, capacity)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`
	return m.DB.QueryRowContext(ctx, query, r.Name, r.Capacity).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (m RoomModel) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := `
		SELECT id, name, capacity, created_at, updated_at, deleted_at
		FROM rooms WHERE id = $1 AND deleted_at IS NULL`
	var r Room
	err := m.DB.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.Capacity, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m RoomModel) Update(ctx context.Context, r *Room) error {
	query := `
		UPDATE rooms SET name = $1, capacity = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING updated_at`
	err := m.DB.QueryRowContext(ctx, query, r.Name, r.Capacity, r.ID).Scan(&r.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m RoomModel) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE rooms SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
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

func (m RoomModel) List(ctx context.Context) ([]*Room, error) {
	query := `SELECT id, name, capacity, created_at, updated_at FROM rooms WHERE deleted_at IS NULL ORDER BY name`
	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Capacity, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}
