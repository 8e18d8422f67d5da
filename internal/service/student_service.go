package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/repository"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

type studentRepository interface {
	ListByTeacher(ctx context.Context, teacherID int64) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Rename(ctx context.Context, id int64, name string) error
	Move(ctx context.Context, id, teacherID int64) error
	Delete(ctx context.Context, id int64) error
}

// AddStudentRequest holds payload for adding a student to a roster.
type AddStudentRequest struct {
	TeacherID int64  `validate:"required"`
	Name      string `validate:"required,max=100"`
}

type renameStudentRequest struct {
	Name string `validate:"required,max=100"`
}

// StudentService handles roster use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns a teacher's roster ordered by name.
func (s *StudentService) List(ctx context.Context, teacherID int64) ([]models.Student, error) {
	students, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns a student owned by teacherID. Students of other teachers are reported as not found.
func (s *StudentService) Get(ctx context.Context, teacherID, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

// Add creates a student under the request's teacher.
func (s *StudentService) Add(ctx context.Context, req AddStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student name")
	}
	student := &models.Student{Name: req.Name, TeacherID: req.TeacherID}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student added", zap.Int64("student_id", student.ID), zap.Int64("teacher_id", student.TeacherID))
	return student, nil
}

// Rename changes a student's name.
func (s *StudentService) Rename(ctx context.Context, id int64, name string) error {
	req := renameStudentRequest{Name: strings.TrimSpace(name)}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student name")
	}
	if err := s.repo.Rename(ctx, id, req.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename student")
	}
	return nil
}

// Move hands a student over to another teacher. Attendance history follows the student.
func (s *StudentService) Move(ctx context.Context, id, teacherID int64) error {
	if err := s.repo.Move(ctx, id, teacherID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrMissingReference):
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move student")
	}
	s.logger.Info("student moved", zap.Int64("student_id", id), zap.Int64("teacher_id", teacherID))
	return nil
}

// Remove deletes a student and, through the store cascade, its attendance.
func (s *StudentService) Remove(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	s.logger.Info("student removed", zap.Int64("student_id", id))
	return nil
}
