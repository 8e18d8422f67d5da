package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	PublicBaseURL string
	ResultTTL     time.Duration
}

// ExportResult captures a stored report and its download link.
type ExportResult struct {
	ID           string
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportService persists rendered reports and issues signed download links for them.
type ExportService struct {
	storage fileStorage
	signer  tokenSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, signer tokenSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &ExportService{storage: storage, signer: signer, logger: logger, cfg: cfg}
}

// Publish stores payload under a unique directory and returns a signed link to it.
func (s *ExportService) Publish(_ context.Context, teacherID int64, filename string, payload []byte) (*ExportResult, error) {
	id := uuid.NewString()
	relPath, err := s.storage.Save(fmt.Sprintf("%d/%s/%s", teacherID, id, sanitizeFilename(filename)), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		ID:           id,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/%s", s.cfg.PublicBaseURL, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
	return deleted, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(0); err != nil {
				s.logger.Warn("report cleanup failed", zap.Error(err))
			}
		}
	}
}

const maxFilenameRunes = 100

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "report"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := []rune(replacer.Replace(raw))
	if len(result) > maxFilenameRunes {
		result = result[len(result)-maxFilenameRunes:]
	}
	return string(result)
}
