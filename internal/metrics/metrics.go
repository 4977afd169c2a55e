// Package metrics provides Prometheus metrics for the call pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_insights"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	StageDuration     *prometheus.HistogramVec
	StageFailures     *prometheus.CounterVec
	Runs              *prometheus.CounterVec
	IntentLabels      *prometheus.CounterVec
	IntentFallbacks   prometheus.Counter
	CollaboratorCalls *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage failures by error kind",
		}, []string{"stage", "kind"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		IntentLabels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_labels_total",
			Help:      "Utterances classified per intent label",
		}, []string{"label"}),
		IntentFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_fallbacks_total",
			Help:      "Utterances that fell back to NO_COMMITMENT after a classification error",
		}),
		CollaboratorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Calls to external services by outcome",
		}, []string{"service", "outcome"}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) StageFailed(stage, kind string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IntentClassified(label string, fallback bool) {
	if m == nil {
		return
	}
	m.IntentLabels.WithLabelValues(label).Inc()
	if fallback {
		m.IntentFallbacks.Inc()
	}
}

// Call records one collaborator call; err == nil counts as "ok".
func (m *Metrics) Call(service string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CollaboratorCalls.WithLabelValues(service, outcome).Inc()
}
