package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/pkg/export"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

type reportRepository interface {
	MonthView(ctx context.Context, teacherID int64, year int, month time.Month) ([]models.MonthAttendanceRow, error)
	PresentDates(ctx context.Context, teacherID int64, year int, month time.Month) ([]time.Time, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Teacher, error)
}

const (
	reportNameHeader  = "Student Name"
	reportTotalHeader = "Total"
)

// Report is a rendered monthly attendance document ready to send.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
	Caption     string
	Link        *ExportResult
}

// ReportService builds monthly attendance sheets and renders them.
type ReportService struct {
	teachers teacherLookup
	repo     reportRepository
	renderer export.Renderer
	exports  *ExportService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReportService constructs a ReportService. exports may be nil to disable download links.
func NewReportService(teachers teacherLookup, repo reportRepository, renderer export.Renderer, exports *ExportService, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if renderer == nil {
		renderer = export.NewXLSXExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{teachers: teachers, repo: repo, renderer: renderer, exports: exports, metrics: metrics, logger: logger}
}

// Generate renders the attendance report of a teacher for one month.
func (s *ReportService) Generate(ctx context.Context, teacherID int64, year int, month time.Month) (*Report, error) {
	start := time.Now()
	if month < time.January || month > time.December || year < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid report month")
	}
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	dataset, err := s.BuildDataset(ctx, teacher, year, month)
	if err != nil {
		return nil, err
	}
	payload, err := s.renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	period := fmt.Sprintf("%s %d", month, year)
	report := &Report{
		Filename:    fmt.Sprintf("Attendance_%s_%s_%d.%s", teacher.Name, month, year, s.renderer.Extension()),
		ContentType: s.renderer.ContentType(),
		Data:        payload,
		Caption:     fmt.Sprintf("📊 Attendance report for %s — %s", teacher.Name, period),
	}

	if s.exports != nil {
		link, err := s.exports.Publish(ctx, teacher.ID, report.Filename, payload)
		if err != nil {
			s.logger.Warn("report link not published", zap.Int64("teacher_id", teacher.ID), zap.Error(err))
		} else {
			report.Link = link
			report.Caption += fmt.Sprintf("\n🔗 %s (valid until %s)", link.URL, link.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
		}
	}

	s.metrics.ObserveReport(s.renderer.Extension(), time.Since(start))
	s.logger.Info("report generated",
		zap.Int64("teacher_id", teacher.ID),
		zap.String("period", period),
		zap.Int("bytes", len(payload)))
	return report, nil
}

// BuildDataset lays out one column per date that has any attendance, followed by a per-student total.
func (s *ReportService) BuildDataset(ctx context.Context, teacher *models.Teacher, year int, month time.Month) (export.Dataset, error) {
	dates, err := s.repo.PresentDates(ctx, teacher.ID, year, month)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance dates")
	}
	view, err := s.repo.MonthView(ctx, teacher.ID, year, month)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load month attendance")
	}

	headers := make([]string, 0, len(dates)+2)
	headers = append(headers, reportNameHeader)
	columns := make(map[time.Time]string, len(dates))
	for _, d := range dates {
		label := strconv.Itoa(d.Day())
		columns[models.Day(d)] = label
		headers = append(headers, label)
	}
	headers = append(headers, reportTotalHeader)

	var rows []map[string]string
	index := map[int64]int{}
	totals := map[int64]int{}
	for _, r := range view {
		i, ok := index[r.StudentID]
		if !ok {
			row := map[string]string{reportNameHeader: r.StudentName}
			for _, label := range columns {
				row[label] = ""
			}
			rows = append(rows, row)
			i = len(rows) - 1
			index[r.StudentID] = i
		}
		if r.Date == nil {
			continue
		}
		label, ok := columns[models.Day(*r.Date)]
		if !ok {
			continue
		}
		if rows[i][label] != export.PresentMark {
			rows[i][label] = export.PresentMark
			totals[r.StudentID]++
		}
	}
	for id, i := range index {
		rows[i][reportTotalHeader] = strconv.Itoa(totals[id])
	}

	return export.Dataset{
		SheetName: fmt.Sprintf("%s %d", month, year),
		Title:     fmt.Sprintf("Attendance Report — %s %d", month, year),
		Subtitle:  fmt.Sprintf("Teacher: %s", teacher.Name),
		Headers:   headers,
		Rows:      rows,
		Numeric:   map[string]bool{reportTotalHeader: true},
	}, nil
}
