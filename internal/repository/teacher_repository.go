package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-bot/internal/models"
)

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns every teacher ordered by name.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, telegram_user_id, name, is_admin FROM teachers ORDER BY name, id`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id int64) (*models.Teacher, error) {
	const query = `SELECT id, telegram_user_id, name, is_admin FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByTelegramID fetches a teacher by platform user id.
func (r *TeacherRepository) FindByTelegramID(ctx context.Context, telegramUserID int64) (*models.Teacher, error) {
	const query = `SELECT id, telegram_user_id, name, is_admin FROM teachers WHERE telegram_user_id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, telegramUserID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a new teacher and fills in its generated id.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	const query = `INSERT INTO teachers (telegram_user_id, name, is_admin) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, teacher.TelegramUserID, teacher.Name, teacher.IsAdmin).Scan(&teacher.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTelegramID
		}
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Delete removes a teacher. Students and their attendance go with it through ON DELETE CASCADE,
// inside one transaction so no caller can observe a half-applied removal.
func (r *TeacherRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete teacher: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if err := expectAffected(res, "delete teacher"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete teacher: %w", err)
	}
	commit = true
	return nil
}

// Ping verifies database connectivity.
func (r *TeacherRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
