package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/repository"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id int64) (*models.Teacher, error)
	FindByTelegramID(ctx context.Context, telegramUserID int64) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id int64) error
}

// RegisterTeacherRequest holds payload for registering a teacher.
type RegisterTeacherRequest struct {
	Name           string `validate:"required,max=100"`
	TelegramUserID int64  `validate:"required,gt=0"`
	IsAdmin        bool
}

// TeacherService handles teacher accounts and identity lookup.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// Authenticate resolves the teacher behind a Telegram user id.
func (s *TeacherService) Authenticate(ctx context.Context, telegramUserID int64) (*models.Teacher, error) {
	teacher, err := s.repo.FindByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnregistered
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// List returns all teachers ordered by name.
func (s *TeacherService) List(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// ListOthers returns all teachers except selfID.
func (s *TeacherService) ListOthers(ctx context.Context, selfID int64) ([]models.Teacher, error) {
	teachers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.ID != selfID {
			others = append(others, t)
		}
	}
	return others, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id int64) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// EnsureAvailable fails with a conflict naming the current owner when the Telegram id is taken.
func (s *TeacherService) EnsureAvailable(ctx context.Context, telegramUserID int64) error {
	existing, err := s.repo.FindByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check telegram id")
	}
	return duplicateTeacher(telegramUserID, existing.Name)
}

// Register creates a teacher account. A Telegram id that is already taken yields a conflict.
func (s *TeacherService) Register(ctx context.Context, req RegisterTeacherRequest) (*models.Teacher, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if err := s.EnsureAvailable(ctx, req.TelegramUserID); err != nil {
		return nil, err
	}
	teacher := &models.Teacher{TelegramUserID: req.TelegramUserID, Name: req.Name, IsAdmin: req.IsAdmin}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if errors.Is(err, repository.ErrDuplicateTelegramID) {
			name := "another teacher"
			if existing, lookupErr := s.repo.FindByTelegramID(ctx, req.TelegramUserID); lookupErr == nil {
				name = existing.Name
			}
			return nil, duplicateTeacher(req.TelegramUserID, name)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher registered", zap.Int64("teacher_id", teacher.ID), zap.Bool("is_admin", teacher.IsAdmin))
	return teacher, nil
}

// Remove deletes a teacher together with their students and attendance.
func (s *TeacherService) Remove(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove teacher")
	}
	s.logger.Info("teacher removed", zap.Int64("teacher_id", id))
	return nil
}

func duplicateTeacher(telegramUserID int64, owner string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict,
		fmt.Sprintf("A teacher with Telegram ID %d is already registered as '%s'.", telegramUserID, owner))
}
