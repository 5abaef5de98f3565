// Package students is the enrollment and roster service layer: student
// CRUD plus the per-image enrollment workflow (spec §3's 5-10 embedding
// bound), grounded on original_source/backend/app/controllers/students.py
// with the teacher's Repository/Auditor service shape
// (internal/cameras.Service).
package students

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/faceengine"
	"github.com/technosupport/campus-presence/internal/platform/paths"
	"github.com/technosupport/campus-presence/internal/vectorindex"
)

var (
	ErrMaxEmbeddings = errors.New("students: student already has the maximum of 10 enrollment images")
	ErrNoFaceInImage = errors.New("students: no face detected in enrollment image")
	ErrInvalidImage  = errors.New("students: invalid image payload")
)

const (
	MinEnrollmentImages = 5
	MaxEnrollmentImages = 10
)

type StudentRepo interface {
	Create(ctx context.Context, s *data.Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*data.Student, error)
	List(ctx context.Context, limit, offset int) ([]*data.Student, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type EmbeddingRepo interface {
	Create(ctx context.Context, e *data.Embedding) error
	CountByStudent(ctx context.Context, studentID uuid.UUID) (int, error)
	DeleteByStudent(ctx context.Context, studentID uuid.UUID) error
}

type PresenceClearer interface {
	DeleteByStudent(ctx context.Context, studentID uuid.UUID) error
}

type AttendanceClearer interface {
	DeleteByStudent(ctx context.Context, studentID uuid.UUID) error
}

type Auditor interface {
	WriteEvent(ctx context.Context, evt audit.AuditEvent) error
}

type Service struct {
	students   StudentRepo
	embeddings EmbeddingRepo
	presence   PresenceClearer
	attendance AttendanceClearer
	index      *vectorindex.Index
	engine     faceengine.Engine
	imagesDir  string
	auditor    Auditor
}

func NewService(
	students StudentRepo,
	embeddings EmbeddingRepo,
	presence PresenceClearer,
	attendance AttendanceClearer,
	index *vectorindex.Index,
	engine faceengine.Engine,
	imagesDir string,
	aud Auditor,
) *Service {
	return &Service{
		students: students, embeddings: embeddings, presence: presence,
		attendance: attendance, index: index, engine: engine, imagesDir: imagesDir, auditor: aud,
	}
}

func (s *Service) Create(ctx context.Context, st *data.Student) error {
	if err := s.students.Create(ctx, st); err != nil {
		return err
	}
	s.audit(ctx, "student.create", st.ID, map[string]any{"student_number": st.StudentNo})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*data.Student, error) {
	return s.students.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*data.Student, error) {
	return s.students.List(ctx, limit, offset)
}

// EnrollmentStatus reports how many valid images a student has accumulated
// and whether that count clears the minimum for reliable recognition.
type EnrollmentStatus struct {
	Count int
	Ready bool
}

func (s *Service) EnrollmentStatus(ctx context.Context, studentID uuid.UUID) (EnrollmentStatus, error) {
	count, err := s.embeddings.CountByStudent(ctx, studentID)
	if err != nil {
		return EnrollmentStatus{}, err
	}
	return EnrollmentStatus{Count: count, Ready: count >= MinEnrollmentImages}, nil
}

// AddEnrollmentImage embeds one image and adds it to both the relational
// embeddings table and the in-memory Vector Index, rejecting once the
// student already has MaxEnrollmentImages.
func (s *Service) AddEnrollmentImage(ctx context.Context, studentID uuid.UUID, raw []byte) (EnrollmentStatus, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return EnrollmentStatus{}, err
	}

	count, err := s.embeddings.CountByStudent(ctx, studentID)
	if err != nil {
		return EnrollmentStatus{}, err
	}
	if count >= MaxEnrollmentImages {
		return EnrollmentStatus{Count: count, Ready: true}, ErrMaxEmbeddings
	}

	vec, ok, err := s.engine.EmbedSingle(raw)
	if err != nil {
		return EnrollmentStatus{}, ErrInvalidImage
	}
	if !ok {
		return EnrollmentStatus{}, ErrNoFaceInImage
	}

	imagePath, err := s.persistEnrollmentImage(student.StudentNo, count, raw)
	if err != nil {
		return EnrollmentStatus{}, fmt.Errorf("students: persist enrollment image: %w", err)
	}

	emb := &data.Embedding{StudentID: studentID, ImagePath: imagePath}
	if err := s.embeddings.Create(ctx, emb); err != nil {
		return EnrollmentStatus{}, err
	}
	if err := s.index.Add(vec, student.InternalID); err != nil {
		return EnrollmentStatus{}, err
	}

	newCount := count + 1
	s.audit(ctx, "student.enrollment_image.add", studentID, map[string]any{"count": newCount})
	return EnrollmentStatus{Count: newCount, Ready: newCount >= MinEnrollmentImages}, nil
}

// Delete removes a student and cascades: Vector Index entries, embedding
// rows, presence rows, and attendance rows. The Vector Index rebuild has
// to happen in-process (data.StudentModel.SoftDelete only marks the row),
// matching the division of labor noted on Student.SoftDelete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.index.RemoveStudent(student.InternalID)
	_ = s.embeddings.DeleteByStudent(ctx, id)
	if s.presence != nil {
		_ = s.presence.DeleteByStudent(ctx, id)
	}
	if s.attendance != nil {
		_ = s.attendance.DeleteByStudent(ctx, id)
	}

	if err := s.students.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "student.delete", id, nil)
	return nil
}

func (s *Service) persistEnrollmentImage(studentNo string, seq int, raw []byte) (string, error) {
	filename := fmt.Sprintf("%s_%d_%s.jpg", studentNo, seq, time.Now().UTC().Format("20060102150405"))
	fullPath, err := paths.SafeJoin(s.imagesDir, "enrollment", studentNo, filename)
	if err != nil {
		return "", err
	}
	if err := writeFile(fullPath, raw); err != nil {
		return "", err
	}
	return fullPath, nil
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
		TargetType: "student",
		CreatedAt:  time.Now(),
		Metadata:   toMeta(meta),
	})
}
