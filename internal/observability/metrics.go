// Package observability provides Prometheus metrics for analysis runs.
//
// A run is a short-lived batch job, so metrics live on a private registry
// and are pushed to a Pushgateway when the run finishes instead of being
// scraped.
package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"macro-regime-lab/internal/domain"
)

const defaultNamespace = "regimelab"

// Metrics holds all Prometheus metrics for one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Pipeline metrics
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Warnings      *prometheus.CounterVec

	// Analysis metrics
	PanelRows        prometheus.Gauge
	RegimeDays       *prometheus.GaugeVec
	ShockEvents      prometheus.Gauge
	ShockResponses   prometheus.Gauge
	PortfolioTailPct prometheus.Gauge

	// Acquisition metrics
	SeriesRequests *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on a new registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of analysis runs by status",
		}, []string{"status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),
		Warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "data_quality_warnings_total",
			Help:      "Total number of data-quality warnings by stage",
		}, []string{"stage"}),

		PanelRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "panel_rows",
			Help:      "Number of aligned panel rows in the last run",
		}),
		RegimeDays: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "regime_days",
			Help:      "Days labeled with each regime in the last run",
		}, []string{"regime"}),
		ShockEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "shock_events",
			Help:      "Accepted rate shock events in the last run",
		}),
		ShockResponses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "shock_responses",
			Help:      "Shock events with a full forward horizon in the last run",
		}),
		PortfolioTailPct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "portfolio_tail_return_percent",
			Help:      "10th percentile portfolio return across shock analogs",
		}),

		SeriesRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "series_requests_total",
			Help:      "Economic series requests by source and outcome",
		}, []string{"source", "outcome"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database operation errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful analysis run",
		}),
	}
}

// RecordStage records a stage's duration.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordWarnings counts warnings by stage.
func (m *Metrics) RecordWarnings(ws domain.Warnings) {
	for _, w := range ws {
		m.Warnings.WithLabelValues(w.Stage).Inc()
	}
}

// RecordRegimes sets the per-regime day gauges. Regimes absent from summaries are reset to 0.
func (m *Metrics) RecordRegimes(summaries []domain.RegimeSummary) {
	for _, r := range domain.AllRegimes() {
		m.RegimeDays.WithLabelValues(r.String()).Set(0)
	}
	for _, s := range summaries {
		m.RegimeDays.WithLabelValues(s.Regime.String()).Set(float64(s.Days))
	}
}

// RecordSeriesRequest counts a series fetch; outcome is e.g. "ok", "cache_hit" or "error".
func (m *Metrics) RecordSeriesRequest(source, outcome string) {
	m.SeriesRequests.WithLabelValues(source, outcome).Inc()
}

// RecordDBQuery records database operation metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun counts a finished run; on success it also stamps LastSuccessfulRun.
func (m *Metrics) RecordRun(status string, unixSeconds float64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(unixSeconds)
	}
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Push sends every collected metric to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
