package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/middleware"
	"github.com/noah-isme/attendance-bot/internal/service"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
	"github.com/noah-isme/attendance-bot/pkg/logger"
	"github.com/noah-isme/attendance-bot/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-bot/pkg/response"
	"github.com/noah-isme/attendance-bot/pkg/storage"
)

const probeTimeout = 2 * time.Second

var errLinkExpired = appErrors.New("LINK_EXPIRED", http.StatusGone, "report link expired")

// Probe is a named readiness check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type reportDownloads interface {
	ParseToken(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

// OpsHandler serves health, readiness, metrics and report downloads.
type OpsHandler struct {
	metrics *service.MetricsService
	reports reportDownloads
	probes  []Probe
	logger  *zap.Logger
}

// NewOpsHandler constructs an ops handler. reports may be nil when download links are disabled.
func NewOpsHandler(metrics *service.MetricsService, reports reportDownloads, logger *zap.Logger, probes ...Probe) *OpsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpsHandler{metrics: metrics, reports: reports, probes: probes, logger: logger}
}

// NewRouter builds the ops HTTP engine.
func NewRouter(ops *OpsHandler, metrics *service.MetricsService, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	r.GET("/reports/:token", ops.DownloadReport)
	return r
}

// Health reports liveness along with interaction counters.
func (h *OpsHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), map[string]interface{}{"status": "ok"})
}

// Ready runs every probe and answers 503 when any fails.
func (h *OpsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	ready := true
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			ready = false
			checks[p.Name] = err.Error()
			h.logger.Warn("readiness probe failed", zap.String("probe", p.Name), zap.Error(err))
			continue
		}
		checks[p.Name] = "ok"
	}

	if !ready {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusServiceUnavailable, response.Envelope{
			Data:  checks,
			Error: appErrors.New("NOT_READY", http.StatusServiceUnavailable, "dependencies unavailable"),
		})
		return
	}
	response.JSON(c, http.StatusOK, checks, map[string]interface{}{"status": "ready"})
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// DownloadReport streams a stored report referenced by a signed token.
func (h *OpsHandler) DownloadReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report links are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	reportID, relPath, _, err := h.reports.ParseToken(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			response.Error(c, errLinkExpired)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid report token"))
		return
	}

	file, err := h.reports.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report"))
		return
	}

	h.logger.Info("report downloaded", zap.String("report_id", reportID), zap.String("request_id", requestid.Value(c)))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", path.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(relPath), file, nil)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
