package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-bot/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByTeacher returns a teacher's roster ordered by name.
func (r *StudentRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]models.Student, error) {
	const query = `SELECT id, name, teacher_id FROM students WHERE teacher_id = $1 ORDER BY name, id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, teacherID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT id, name, teacher_id FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student and fills in its generated id.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (name, teacher_id) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, student.Name, student.TeacherID).Scan(&student.ID); err != nil {
		if isForeignKeyViolation(err) {
			return ErrMissingReference
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Rename changes a student's display name.
func (r *StudentRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("rename student: %w", err)
	}
	return expectAffected(res, "rename student")
}

// Move reassigns a student to another teacher. Attendance rows are keyed by student and stay untouched.
func (r *StudentRepository) Move(ctx context.Context, id, teacherID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET teacher_id = $1 WHERE id = $2`, teacherID, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMissingReference
		}
		return fmt.Errorf("move student: %w", err)
	}
	return expectAffected(res, "move student")
}

// Delete removes a student together with its attendance rows.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if err := expectAffected(res, "delete student"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	commit = true
	return nil
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
