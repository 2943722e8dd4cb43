// Package observability exposes Prometheus metrics for the capture,
// detection, fusion, and notification pipelines.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A single instance is created at startup and
// shared by reference.
type Metrics struct {
	registry *prometheus.Registry

	CaptureFramesTotal   *prometheus.CounterVec
	CaptureFailuresTotal *prometheus.CounterVec
	CaptureWorkers       prometheus.Gauge

	FramesProcessedTotal *prometheus.CounterVec
	EventsTotal          *prometheus.CounterVec
	SnapshotsTotal       *prometheus.CounterVec
	ModelReloadsTotal    *prometheus.CounterVec

	AlertsCreatedTotal    *prometheus.CounterVec
	AlertTransitionsTotal *prometheus.CounterVec

	NotificationAttemptsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		CaptureFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_capture_frames_total",
			Help: "Frames captured and published, per physical source.",
		}, []string{"source"}),
		CaptureFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_capture_failures_total",
			Help: "Capture open/read failures, per physical source.",
		}, []string{"source"}),
		CaptureWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "condowatch_capture_workers",
			Help: "Live capture workers.",
		}),

		FramesProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_vision_frames_processed_total",
			Help: "Frames run through the detection loop, per channel.",
		}, []string{"channel"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_events_total",
			Help: "Events appended to the event log, per type.",
		}, []string{"type"}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_snapshots_total",
			Help: "Snapshots persisted at streak milestones, per type.",
		}, []string{"type"}),
		ModelReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_model_reloads_total",
			Help: "Classifier model hot-reloads, per model and outcome.",
		}, []string{"model", "outcome"}),

		AlertsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_alerts_created_total",
			Help: "Alerts created by fusion, per type.",
		}, []string{"type"}),
		AlertTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_alert_transitions_total",
			Help: "Alert lifecycle transitions, per target status and outcome.",
		}, []string{"target", "outcome"}),

		NotificationAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condowatch_notification_attempts_total",
			Help: "Notification attempts, per kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	registry.MustRegister(
		m.CaptureFramesTotal,
		m.CaptureFailuresTotal,
		m.CaptureWorkers,
		m.FramesProcessedTotal,
		m.EventsTotal,
		m.SnapshotsTotal,
		m.ModelReloadsTotal,
		m.AlertsCreatedTotal,
		m.AlertTransitionsTotal,
		m.NotificationAttemptsTotal,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeNoop   = "noop"
)
