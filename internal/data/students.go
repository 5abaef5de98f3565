package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrStudentNumberDuplicate = errors.New("student number already exists")

// Student is a stable identity referenced by embeddings, attendance, presence.
// InternalID is the dense integer used as the Vector Index's id_map entry;
// ID is the external UUID used everywhere else.
type Student struct {
	ID           uuid.UUID  `json:"id"`
	InternalID   int64      `json:"internal_id"`
	StudentNo    string     `json:"student_number"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	GroupName    string     `json:"group_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type StudentModel struct {
	DB DBTX
}

func (m StudentModel) Create(ctx context.Context, s *Student) error {
	query := `
		INSERT INTO students (student_number, first_name, last_name, group_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, internal_id, created_at`
	err := m.DB.QueryRowContext(ctx, query, s.StudentNo, s.FirstName, s.LastName, nullIfEmpty(s.GroupName)).
		Scan(&s.ID, &s.InternalID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrStudentNumberDuplicate
	}
	return err
}

func (m StudentModel) GetByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	query := `
		SELECT id, internal_id, student_number, first_name, last_name, COALESCE(group_name, ''), created_at, deleted_at
		FROM students WHERE id = $1 AND deleted_at IS NULL`
	return m.scanOne(ctx, query, id)
}

func (m StudentModel) GetByInternalID(ctx context.Context, internalID int64) (*Student, error) {
	query := `
		SELECT id, internal_id, student_number, first_name, last_name, COALESCE(group_name, ''), created_at, deleted_at
		FROM students WHERE internal_id = $1 AND deleted_at IS NULL`
	return m.scanOne(ctx, query, internalID)
}

func (m StudentModel) GetByStudentNumber(ctx context.Context, studentNo string) (*Student, error) {
	query := `
		SELECT id, internal_id, student_number, first_name, last_name, COALESCE(group_name, ''), created_at, deleted_at
		FROM students WHERE student_number = $1 AND deleted_at IS NULL`
	return m.scanOne(ctx, query, studentNo)
}

func (m StudentModel) scanOne(ctx context.Context, query string, arg any) (*Student, error) {
	var s Student
	err := m.DB.QueryRowContext(ctx, query, arg).Scan(
		&s.ID, &s.InternalID, &s.StudentNo, &s.FirstName, &s.LastName, &s.GroupName, &s.CreatedAt, &s.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (m StudentModel) List(ctx context.Context, limit, offset int) ([]*Student, error) {
	query := `
		SELECT id, internal_id, student_number, first_name, last_name, COALESCE(group_name, ''), created_at
		FROM students WHERE deleted_at IS NULL ORDER BY last_name, first_name LIMIT $1 OFFSET $2`
	rows, err := m.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.InternalID, &s.StudentNo, &s.FirstName, &s.LastName, &s.GroupName, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, nil
}

// SoftDelete marks the student deleted. Cascading removal of embeddings,
// presence, and attendance rows is the caller's (service-layer) job, since
// the Vector Index rebuild has to happen in-process, not in SQL.
func (m StudentModel) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE students SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
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

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks for Postgres error code 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
