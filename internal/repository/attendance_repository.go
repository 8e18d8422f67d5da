package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-bot/internal/models"
)

// AttendanceRepository persists presence marks. A row exists only for present students.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// MarkPresent records presence; marking an already-present student is a no-op.
func (r *AttendanceRepository) MarkPresent(ctx context.Context, studentID int64, date time.Time) error {
	const query = `INSERT INTO attendance (student_id, date) VALUES ($1, $2)
ON CONFLICT (student_id, date) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studentID, models.Day(date)); err != nil {
		if isForeignKeyViolation(err) {
			return ErrMissingReference
		}
		return fmt.Errorf("mark present: %w", err)
	}
	return nil
}

// UnmarkPresent deletes the presence row if it exists.
func (r *AttendanceRepository) UnmarkPresent(ctx context.Context, studentID int64, date time.Time) error {
	const query = `DELETE FROM attendance WHERE student_id = $1 AND date = $2`
	if _, err := r.db.ExecContext(ctx, query, studentID, models.Day(date)); err != nil {
		return fmt.Errorf("unmark present: %w", err)
	}
	return nil
}

// PresentSet returns the ids of a teacher's students marked present on date.
func (r *AttendanceRepository) PresentSet(ctx context.Context, teacherID int64, date time.Time) (map[int64]struct{}, error) {
	const query = `SELECT a.student_id FROM attendance a
JOIN students s ON s.id = a.student_id
WHERE s.teacher_id = $1 AND a.date = $2`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, teacherID, models.Day(date)); err != nil {
		return nil, fmt.Errorf("present set: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// MonthView returns one row per (student, present date) in the month. Students without
// entries still appear once with a nil date.
func (r *AttendanceRepository) MonthView(ctx context.Context, teacherID int64, year int, month time.Month) ([]models.MonthAttendanceRow, error) {
	from, to := monthBounds(year, month)
	const query = `SELECT s.id AS student_id, s.name AS student_name, a.date
FROM students s
LEFT JOIN attendance a ON a.student_id = s.id AND a.date >= $2 AND a.date < $3
WHERE s.teacher_id = $1
ORDER BY s.name, s.id, a.date`
	var rows []models.MonthAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("month attendance view: %w", err)
	}
	return rows, nil
}

// PresentDates returns the sorted distinct dates in the month with at least one entry.
func (r *AttendanceRepository) PresentDates(ctx context.Context, teacherID int64, year int, month time.Month) ([]time.Time, error) {
	from, to := monthBounds(year, month)
	const query = `SELECT DISTINCT a.date
FROM attendance a
JOIN students s ON s.id = a.student_id
WHERE s.teacher_id = $1 AND a.date >= $2 AND a.date < $3
ORDER BY a.date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("present dates: %w", err)
	}
	return dates, nil
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
