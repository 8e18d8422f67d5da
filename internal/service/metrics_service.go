package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Toggle directions recorded by attendance_toggles_total.
const (
	DirectionPresent = "present"
	DirectionAbsent  = "absent"
)

// MetricsSnapshot is a cheap summary served by the health endpoint.
type MetricsSnapshot struct {
	Interactions       uint64    `json:"interactions"`
	InteractionErrors  uint64    `json:"interaction_errors"`
	Toggles            uint64    `json:"toggles"`
	ReportsGenerated   uint64    `json:"reports_generated"`
	AverageInteraction float64   `json:"average_interaction_ms"`
	Goroutines         int       `json:"goroutines"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for the bot and its ops endpoints.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	interactionTotal    *prometheus.CounterVec
	interactionDuration *prometheus.HistogramVec
	toggles             *prometheus.CounterVec
	reportDuration      *prometheus.HistogramVec

	interactionCount         uint64
	interactionErrorCount    uint64
	interactionDurationTotal uint64
	toggleCount              uint64
	reportCount              uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of ops HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of ops HTTP requests",
	}, []string{"method", "path", "status"})

	interactionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_interactions_total",
		Help: "Chat interactions handled, by action kind and outcome",
	}, []string{"action", "outcome"})

	interactionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_interaction_duration_seconds",
		Help:    "Time spent handling a chat interaction",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_toggles_total",
		Help: "Attendance toggles by resulting state",
	}, []string{"direction"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_generation_seconds",
		Help:    "Time spent building and rendering monthly reports",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, interactionTotal, interactionDuration, toggles, reportDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		interactionTotal:    interactionTotal,
		interactionDuration: interactionDuration,
		toggles:             toggles,
		reportDuration:      reportDuration,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records ops request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveInteraction records one handled chat interaction.
func (m *MetricsService) ObserveInteraction(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.interactionTotal.WithLabelValues(action, outcome).Inc()
	m.interactionDuration.WithLabelValues(action).Observe(duration.Seconds())
	atomic.AddUint64(&m.interactionCount, 1)
	atomic.AddUint64(&m.interactionDurationTotal, uint64(duration.Nanoseconds()))
	if outcome == "error" {
		atomic.AddUint64(&m.interactionErrorCount, 1)
	}
}

// RecordToggle counts an attendance toggle in the given direction.
func (m *MetricsService) RecordToggle(direction string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(direction).Inc()
	atomic.AddUint64(&m.toggleCount, 1)
}

// ObserveReport records report generation timing.
func (m *MetricsService) ObserveReport(format string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(format).Observe(duration.Seconds())
	atomic.AddUint64(&m.reportCount, 1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	count := atomic.LoadUint64(&m.interactionCount)
	total := atomic.LoadUint64(&m.interactionDurationTotal)

	var avg float64
	if count > 0 {
		avg = float64(total) / float64(count) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		Interactions:       count,
		InteractionErrors:  atomic.LoadUint64(&m.interactionErrorCount),
		Toggles:            atomic.LoadUint64(&m.toggleCount),
		ReportsGenerated:   atomic.LoadUint64(&m.reportCount),
		AverageInteraction: avg,
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
}
