package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/irops/specialist"
)

// Metrics records run outcomes, stage durations, and specialist
// settlement counts. A nil *Metrics is valid and records nothing, so
// the engine works unchanged without a registry.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	specialistResults *prometheus.CounterVec
}

// NewMetrics creates the engine metric set and registers it with reg.
// A nil registerer creates unregistered collectors, useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irops",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Completed runs by terminal state.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "irops",
			Subsystem: "engine",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per workflow stage.",
			// Stages range from sub-millisecond gate math to the 60s
			// whole-run deadline.
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		specialistResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irops",
			Subsystem: "engine",
			Name:      "specialist_results_total",
			Help:      "Specialist settlements by role and status.",
		}, []string{"specialist", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.runsTotal, m.stageDuration, m.specialistResults)
	}
	return m
}

// RecordRun counts one run reaching a terminal state.
func (m *Metrics) RecordRun(outcome RunState) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordStage observes one stage's wall time.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSpecialist counts one specialist settlement.
func (m *Metrics) RecordSpecialist(res specialist.Result) {
	if m == nil {
		return
	}
	m.specialistResults.WithLabelValues(string(res.Specialist), string(res.Status)).Inc()
}
