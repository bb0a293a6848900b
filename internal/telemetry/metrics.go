// Package telemetry provides Prometheus metrics for the fix pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "code_janitor"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors updated by the orchestrator and scheduler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// FixAttempts counts fix attempts by outcome.
	FixAttempts *prometheus.CounterVec
	// FixStepFailures counts failed fix steps by step name.
	FixStepFailures *prometheus.CounterVec
	// FixDuration measures a complete fix attempt.
	FixDuration *prometheus.HistogramVec
	// IssuesSynced counts issues created by analyzer sync.
	IssuesSynced prometheus.Counter
	// PullRequestsMerged counts issues closed by merge reconciliation.
	PullRequestsMerged prometheus.Counter
	// GatewayCalls counts external calls by gateway, operation and outcome.
	GatewayCalls *prometheus.CounterVec
	// Cycles counts scheduler cycles by outcome.
	Cycles *prometheus.CounterVec
	// CycleDuration measures a full scheduler cycle.
	CycleDuration prometheus.Histogram
}

// New creates the collectors on a fresh registry, so several instances can
// coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FixAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fixer",
			Name:      "attempts_total",
			Help:      "Fix attempts by outcome.",
		}, []string{"outcome"}),
		FixStepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fixer",
			Name:      "step_failures_total",
			Help:      "Failed fix steps by step.",
		}, []string{"step"}),
		FixDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fixer",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a fix attempt.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),
		IssuesSynced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "issues_created_total",
			Help:      "Issues created from analyzer findings.",
		}),
		PullRequestsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "merged_total",
			Help:      "Issues closed after their pull request was merged.",
		}),
		GatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "External calls by gateway, operation and outcome.",
		}, []string{"gateway", "operation", "outcome"}),
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Scheduler cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a scheduler cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFix records the outcome and duration of a fix attempt.
func (m *Metrics) ObserveFix(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FixAttempts.WithLabelValues(outcome).Inc()
	m.FixDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// StepFailed records a failed fix step.
func (m *Metrics) StepFailed(step string) {
	if m == nil {
		return
	}
	m.FixStepFailures.WithLabelValues(step).Inc()
}

// Synced records newly created issues.
func (m *Metrics) Synced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IssuesSynced.Add(float64(n))
}

// Merged records issues closed by reconciliation.
func (m *Metrics) Merged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PullRequestsMerged.Add(float64(n))
}

// GatewayCall records the outcome of one external call.
func (m *Metrics) GatewayCall(gateway, operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.GatewayCalls.WithLabelValues(gateway, operation, outcome).Inc()
}

// ObserveCycle records the outcome and duration of a scheduler cycle.
func (m *Metrics) ObserveCycle(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
}
