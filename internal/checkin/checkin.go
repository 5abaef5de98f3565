// Package checkin implements the single-frame attendance path (spec §4.9):
// decode one submitted image, embed its most prominent face, match it
// against the Vector Index, and record (or report) today's attendance.
package checkin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/faceengine"
	"github.com/technosupport/campus-presence/internal/platform/paths"
	"github.com/technosupport/campus-presence/internal/vectorindex"
)

var (
	ErrNoFace        = errors.New("checkin: no face detected in image")
	ErrNotFound      = errors.New("checkin: face did not match any enrolled student")
	ErrInvalidImage  = errors.New("checkin: invalid image payload")
)

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeAlreadyAttended Outcome = "already_attended"
)

type Result struct {
	Outcome      Outcome
	Student      *data.Student
	Confidence   float64
	PriorTime    *time.Time
	SnapshotPath string
}

type Service struct {
	engine     faceengine.Engine
	index      *vectorindex.Index
	students   *data.StudentModel
	attendance *data.AttendanceModel
	imagesDir  string
}

func NewService(engine faceengine.Engine, index *vectorindex.Index, students *data.StudentModel, attendance *data.AttendanceModel, imagesDir string) *Service {
	return &Service{engine: engine, index: index, students: students, attendance: attendance, imagesDir: imagesDir}
}

// CheckIn decodes a base64-encoded JPEG, matches it against the Vector
// Index, and writes an Attendance row if one doesn't already exist for
// today. now is injected so callers (and tests) control the check-in
// timestamp rather than relying on a hidden clock read inside the service.
func (s *Service) CheckIn(ctx context.Context, imageB64 string, now time.Time) (*Result, error) {
	raw, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return nil, ErrInvalidImage
	}

	vec, ok, err := s.engine.EmbedSingle(raw)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if !ok {
		return nil, ErrNoFace
	}

	match, matched := s.index.SearchWithThreshold(vec)
	if !matched {
		return nil, ErrNotFound
	}

	student, err := s.students.GetByInternalID(ctx, match.StudentID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if existing, err := s.attendance.GetForDate(ctx, student.ID, day); err == nil {
		priorTime := existing.Time
		return &Result{
			Outcome:    OutcomeAlreadyAttended,
			Student:    student,
			Confidence: match.Score,
			PriorTime:  &priorTime,
		}, nil
	} else if !errors.Is(err, data.ErrRecordNotFound) {
		return nil, err
	}

	snapshotPath, err := s.persistSnapshot(student.StudentNo, now, raw)
	if err != nil {
		return nil, fmt.Errorf("checkin: persist snapshot: %w", err)
	}

	record := &data.Attendance{
		StudentID:    student.ID,
		Date:         day,
		Time:         now,
		Confidence:   match.Score,
		SnapshotPath: snapshotPath,
	}
	if err := s.attendance.Create(ctx, record); err != nil {
		if errors.Is(err, data.ErrAttendanceAlreadyRecorded) {
			existing, getErr := s.attendance.GetForDate(ctx, student.ID, day)
			if getErr != nil {
				return nil, getErr
			}
			priorTime := existing.Time
			return &Result{Outcome: OutcomeAlreadyAttended, Student: student, Confidence: match.Score, PriorTime: &priorTime}, nil
		}
		return nil, err
	}

	return &Result{
		Outcome:      OutcomeSuccess,
		Student:      student,
		Confidence:   match.Score,
		SnapshotPath: snapshotPath,
	}, nil
}

func (s *Service) persistSnapshot(studentNo string, now time.Time, raw []byte) (string, error) {
	filename := fmt.Sprintf("%s_%s.jpg", studentNo, now.UTC().Format("20060102_150405"))
	fullPath, err := paths.SafeJoin(s.imagesDir, "attendance", filename)
	if err != nil {
		return "", err
	}
	if err := writeFile(fullPath, raw); err != nil {
		return "", err
	}
	return fullPath, nil
}
