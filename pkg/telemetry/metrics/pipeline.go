package metrics

import (
	"time"

	"mercator-hq/darwin/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StageMetrics tracks pipeline stage runs.
type StageMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewStageMetrics creates and registers stage metrics.
func NewStageMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StageMetrics {
	sm := &StageMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "stage",
				Name:      "runs_total",
				Help:      "Total number of pipeline stage runs by outcome",
			},
			[]string{"stage", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"stage"},
		),
	}
	registry.MustRegister(sm.runs, sm.duration)
	return sm
}

// Record records one stage run.
func (sm *StageMetrics) Record(stage, outcome string, duration time.Duration) {
	sm.runs.WithLabelValues(stage, outcome).Inc()
	sm.duration.WithLabelValues(stage).Observe(duration.Seconds())
}

// EvolutionMetrics tracks the results of the evolution loop.
type EvolutionMetrics struct {
	mutationFallbacks prometheus.Counter
	promotions        *prometheus.CounterVec
	tickets           *prometheus.CounterVec
	feedback          *prometheus.CounterVec
	auditRuns         *prometheus.CounterVec
	auditViolations   prometheus.Gauge
}

// NewEvolutionMetrics creates and registers evolution metrics.
func NewEvolutionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvolutionMetrics {
	em := &EvolutionMetrics{
		mutationFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "mutation_fallbacks_total",
			Help:      "Mutation rounds that used the built-in fallback mutations",
		}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "promotions_total",
			Help:      "Supervisor decisions by outcome",
		}, []string{"outcome"}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "tickets_total",
			Help:      "Tickets filed for human review by type",
		}, []string{"type"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "feedback_total",
			Help:      "User feedback received by kind",
		}, []string{"kind"}),
		auditRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pointer_audit",
			Name:      "runs_total",
			Help:      "Pointer audit runs by result",
		}, []string{"result"}),
		auditViolations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pointer_audit_violations",
			Help:      "Lineages whose CURRENT pointer failed the last audit",
		}),
	}
	registry.MustRegister(em.mutationFallbacks, em.promotions, em.tickets, em.feedback, em.auditRuns, em.auditViolations)
	return em
}
