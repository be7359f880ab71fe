package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the automation pipeline:
// provider executions, tool failures seen during tool-calling sessions,
// and scheduled job runs.
type Metrics struct {
	registry *prometheus.Registry

	executions   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	toolFailures *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a private registry,
// so tests can build as many instances as they need.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbrain_provider_executions_total",
			Help: "Provider executions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbrain_provider_duration_seconds",
			Help:    "Provider execution duration in seconds.",
			Buckets: []float64{1, 5, 15, 60, 180, 600, 1200},
		}, []string{"provider"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbrain_tool_failures_total",
			Help: "Capability failures by capability and error code.",
		}, []string{"capability", "code"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbrain_job_runs_total",
			Help: "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}
	m.registry.MustRegister(m.executions, m.duration, m.toolFailures, m.jobRuns)
	return m
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordExecution records one provider execution.
func (m *Metrics) RecordExecution(providerName string, success bool, seconds float64) {
	m.executions.WithLabelValues(providerName, outcomeLabel(success)).Inc()
	m.duration.WithLabelValues(providerName).Observe(seconds)
}

// RecordToolFailure records one failed capability call.
func (m *Metrics) RecordToolFailure(capabilityName, code string) {
	m.toolFailures.WithLabelValues(capabilityName, code).Inc()
}

// RecordJobRun records one scheduled job run.
func (m *Metrics) RecordJobRun(job string, success bool) {
	m.jobRuns.WithLabelValues(job, outcomeLabel(success)).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
