package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/session"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

type attendanceRepository interface {
	MarkPresent(ctx context.Context, studentID int64, date time.Time) error
	UnmarkPresent(ctx context.Context, studentID int64, date time.Time) error
	PresentSet(ctx context.Context, teacherID int64, date time.Time) (map[int64]struct{}, error)
}

type rosterRepository interface {
	ListByTeacher(ctx context.Context, teacherID int64) ([]models.Student, error)
}

// AttendanceService keeps a session working set and the store in lockstep.
type AttendanceService struct {
	repo    attendanceRepository
	roster  rosterRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, roster rosterRepository, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, roster: roster, metrics: metrics, logger: logger}
}

// Open loads the roster and the stored present set for date. The returned
// working set is nil when the teacher has no students.
func (s *AttendanceService) Open(ctx context.Context, teacherID int64, date time.Time) (*session.WorkingSet, []models.Student, error) {
	students, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if len(students) == 0 {
		return nil, nil, nil
	}
	present, err := s.repo.PresentSet(ctx, teacherID, date)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return session.NewWorkingSet(date, present), students, nil
}

// Toggle flips one student between present and absent for the working date,
// writing the store first and the working set second. It returns the roster
// for re-rendering.
func (s *AttendanceService) Toggle(ctx context.Context, teacherID int64, ws *session.WorkingSet, studentID int64) ([]models.Student, error) {
	students, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if !containsStudent(students, studentID) {
		return students, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	if ws.Has(studentID) {
		if err := s.repo.UnmarkPresent(ctx, studentID, ws.Date); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unmark attendance")
		}
		ws.Remove(studentID)
		s.metrics.RecordToggle(DirectionAbsent)
	} else {
		if err := s.repo.MarkPresent(ctx, studentID, ws.Date); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
		}
		ws.Add(studentID)
		s.metrics.RecordToggle(DirectionPresent)
	}
	return students, nil
}

// Summarize partitions the roster by working set membership.
func (s *AttendanceService) Summarize(ctx context.Context, teacherID int64, ws *session.WorkingSet) (*models.AttendanceSummary, error) {
	students, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	summary := &models.AttendanceSummary{Date: ws.Date}
	for _, st := range students {
		if ws.Has(st.ID) {
			summary.Present = append(summary.Present, st)
		} else {
			summary.Absent = append(summary.Absent, st)
		}
	}
	s.logger.Info("attendance closed",
		zap.Int64("teacher_id", teacherID),
		zap.String("date", ws.Date.Format(models.DateLayout)),
		zap.Int("present", len(summary.Present)),
		zap.Int("absent", len(summary.Absent)))
	return summary, nil
}

func containsStudent(students []models.Student, id int64) bool {
	for _, st := range students {
		if st.ID == id {
			return true
		}
	}
	return false
}
