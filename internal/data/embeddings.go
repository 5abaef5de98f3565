package data

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Embedding is the relational record of one enrollment vector. The vector
// itself lives only in the Vector Index's in-memory matrix plus its on-disk
// blob; this row tracks provenance (source image path, when it was added)
// and is the thing the enrollment workflow counts against the 5-10 bound.
type Embedding struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}

type EmbeddingModel struct {
	DB DBTX
}

func (m EmbeddingModel) Create(ctx context.Context, e *Embedding) error {
	query := `
		INSERT INTO embeddings (student_id, image_path)
		VALUES ($1, $2)
		RETURNING id, created_at`
	return m.DB.QueryRowContext(ctx, query, e.StudentID, e.ImagePath).Scan(&e.ID, &e.CreatedAt)
}

func (m EmbeddingModel) CountByStudent(ctx context.Context, studentID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM embeddings WHERE student_id = $1`
	var count int
	err := m.DB.QueryRowContext(ctx, query, studentID).Scan(&count)
	return count, err
}

func (m EmbeddingModel) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*Embedding, error) {
	query := `SELECT id, student_id, image_path, created_at FROM embeddings WHERE student_id = $1 ORDER BY created_at`
	rows, err := m.DB.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Embedding
	for rows.Next() {
		var e Embedding
		if err := rows.Scan(&e.ID, &e.StudentID, &e.ImagePath, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

// DeleteByStudent removes all embedding records for a student, used when a
// Student is deleted (cascades alongside the Vector Index's remove_student).
func (m EmbeddingModel) DeleteByStudent(ctx context.Context, studentID uuid.UUID) error {
	query := `DELETE FROM embeddings WHERE student_id = $1`
	_, err := m.DB.ExecContext(ctx, query, studentID)
	return err
}
