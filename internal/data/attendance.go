package data

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var ErrAttendanceAlreadyRecorded = errors.New("attendance already recorded for this student today")

// Attendance is the daily check-in record: exactly one row per student per
// calendar day, written only by the check-in path, never by presence.
type Attendance struct {
	ID           uuid.UUID `json:"id"`
	StudentID    uuid.UUID `json:"student_id"`
	Date         time.Time `json:"date"`
	Time         time.Time `json:"time"`
	Confidence   float64   `json:"confidence"`
	SnapshotPath string    `json:"snapshot_path"`
}

type AttendanceModel struct {
	DB DBTX
}

func (m AttendanceModel) Create(ctx context.Context, a *Attendance) error {
	query := `
		INSERT INTO attendance (student_id, date, time, confidence, snapshot_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := m.DB.QueryRowContext(ctx, query, a.StudentID, a.Date, a.Time, a.Confidence, a.SnapshotPath).Scan(&a.ID)
	if isUniqueViolation(err) {
		return ErrAttendanceAlreadyRecorded
	}
	return err
}

// GetForDate returns the attendance row for a student on a given date, if any.
func (m AttendanceModel) GetForDate(ctx context.Context, studentID uuid.UUID, date time.Time) (*Attendance, error) {
	query := `
		SELECT id, student_id, date, time, confidence, snapshot_path
		FROM attendance WHERE student_id = $1 AND date = $2`
	var a Attendance
	err := m.DB.QueryRowContext(ctx, query, studentID, date).Scan(&a.ID, &a.StudentID, &a.Date, &a.Time, &a.Confidence, &a.SnapshotPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List supports the admin review endpoint, optionally filtered by student
// and/or date.
func (m AttendanceModel) List(ctx context.Context, studentID *uuid.UUID, date *time.Time, limit, offset int) ([]*Attendance, error) {
	where := "WHERE 1=1"
	var args []any
	idx := 1
	if studentID != nil {
		where += " AND student_id = $" + strconv.Itoa(idx)
		args = append(args, *studentID)
		idx++
	}
	if date != nil {
		where += " AND date = $" + strconv.Itoa(idx)
		args = append(args, *date)
		idx++
	}
	query := `SELECT id, student_id, date, time, confidence, snapshot_path FROM attendance ` + where +
		` ORDER BY date DESC, time DESC LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Date, &a.Time, &a.Confidence, &a.SnapshotPath); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}

func (m AttendanceModel) DeleteByStudent(ctx context.Context, studentID uuid.UUID) error {
	query := `DELETE FROM attendance WHERE student_id = $1`
	_, err := m.DB.ExecContext(ctx, query, studentID)
	return err
}

