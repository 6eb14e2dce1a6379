package metrics

import (
	"sync"
	"time"

	"mercator-hq/darwin/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the metric registry and records gateway, stage and
// evolution metrics. All methods are safe on a nil receiver.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	gateway   *GatewayMetrics
	stages    *StageMetrics
	evolution *EvolutionMetrics

	// Model ids come from genome data, so their label cardinality is capped.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector. If registry is nil a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		gateway:            NewGatewayMetrics(cfg, registry),
		stages:             NewStageMetrics(cfg, registry),
		evolution:          NewEvolutionMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// model returns the model label, collapsing to "other" past the
// cardinality limit.
func (c *Collector) model(model string) string {
	if !c.cardinalityLimiter.Allow(model) {
		return "other"
	}
	return model
}

// RecordGatewayCall records one completed model invocation.
// status is "success" or "error".
func (c *Collector) RecordGatewayCall(provider, model, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.gateway.RecordCall(provider, c.model(model), status, duration)
}

// RecordGatewayError records a failed invocation by error type
// (e.g. "throttled", "auth", "timeout", "server_error").
func (c *Collector) RecordGatewayError(provider, errorType string) {
	if !c.enabled() {
		return
	}
	c.gateway.RecordError(provider, errorType)
}

// RecordThrottleRetry records one backoff retry after throttling.
func (c *Collector) RecordThrottleRetry(model string) {
	if !c.enabled() {
		return
	}
	c.gateway.RecordThrottleRetry(c.model(model))
}

// UpdateProviderHealth updates the health gauge of a provider.
func (c *Collector) UpdateProviderHealth(provider string, healthy bool) {
	if !c.enabled() {
		return
	}
	c.gateway.UpdateHealth(provider, healthy)
}

// RecordStage records one stage run. outcome is stage specific, for
// example "pass"/"fail" for the critic or "winner"/"no_winner" for the judge.
func (c *Collector) RecordStage(stage, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.stages.Record(stage, outcome, duration)
}

// RecordMutationFallback records a mutation round that used the built-in
// fallback mutations.
func (c *Collector) RecordMutationFallback() {
	if !c.enabled() {
		return
	}
	c.evolution.mutationFallbacks.Inc()
}

// RecordPromotion records a supervisor decision ("promoted" or "rejected").
func (c *Collector) RecordPromotion(outcome string) {
	if !c.enabled() {
		return
	}
	c.evolution.promotions.WithLabelValues(outcome).Inc()
}

// RecordTicket records a ticket filed for human review.
func (c *Collector) RecordTicket(ticketType string) {
	if !c.enabled() {
		return
	}
	c.evolution.tickets.WithLabelValues(ticketType).Inc()
}

// RecordFeedback records a like or dislike.
func (c *Collector) RecordFeedback(kind string) {
	if !c.enabled() {
		return
	}
	c.evolution.feedback.WithLabelValues(kind).Inc()
}

// RecordAudit records a pointer audit run and the number of lineages whose
// CURRENT pointer failed verification.
func (c *Collector) RecordAudit(violations int, err error) {
	if !c.enabled() {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case violations > 0:
		result = "violations"
	}
	c.evolution.auditRuns.WithLabelValues(result).Inc()
	if err == nil {
		c.evolution.auditViolations.Set(float64(violations))
	}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// CardinalityLimiter caps the number of distinct label values accepted.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter accepting maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already known or still fits.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
