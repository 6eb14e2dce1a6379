package metrics

import (
	"time"

	"mercator-hq/darwin/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics tracks model invocations through the inference gateway.
type GatewayMetrics struct {
	health          *prometheus.GaugeVec
	duration        *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	requests        *prometheus.CounterVec
	throttleRetries *prometheus.CounterVec
}

// NewGatewayMetrics creates and registers gateway metrics.
func NewGatewayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GatewayMetrics {
	gm := &GatewayMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Model invocation latency in seconds, including throttle backoff",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"provider", "model"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total number of failed model invocations by error type",
			},
			[]string{"provider", "type"},
		),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of model invocations",
			},
			[]string{"provider", "model", "status"},
		),

		throttleRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gateway",
				Name:      "throttle_retries_total",
				Help:      "Total number of retries after provider throttling",
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(gm.health, gm.duration, gm.errors, gm.requests, gm.throttleRetries)
	return gm
}

// RecordCall records a completed invocation.
func (gm *GatewayMetrics) RecordCall(provider, model, status string, duration time.Duration) {
	gm.requests.WithLabelValues(provider, model, status).Inc()
	gm.duration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordError records a failed invocation.
func (gm *GatewayMetrics) RecordError(provider, errorType string) {
	gm.errors.WithLabelValues(provider, errorType).Inc()
}

// RecordThrottleRetry records a backoff retry.
func (gm *GatewayMetrics) RecordThrottleRetry(model string) {
	gm.throttleRetries.WithLabelValues(model).Inc()
}

// UpdateHealth sets the provider health gauge.
func (gm *GatewayMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	gm.health.WithLabelValues(provider).Set(value)
}
