package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/providers"
	"mercator-hq/darwin/pkg/telemetry/metrics"
	"mercator-hq/darwin/pkg/telemetry/tracing"
)

// Request is one model invocation.
type Request struct {
	// ModelID is the model identifier as written in a genome or role
	// config. Aliases are resolved by the gateway.
	ModelID string

	// System is the system instruction.
	System string

	// Messages is the conversation, oldest first.
	Messages []genome.Turn

	// Temperature is always sent, including zero.
	Temperature float64

	// MaxTokens caps the generated tokens.
	MaxTokens int
}

// Invoker sends a request to a model and returns the generated text.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// ProviderSource looks up providers by name. *providerfactory.Manager
// satisfies it.
type ProviderSource interface {
	GetProvider(name string) (providers.Provider, error)
}

// Error is a failed invocation. It matches genome.ErrThrottled when every
// attempt was throttled and genome.ErrGateway otherwise.
type Error struct {
	Model     string
	Provider  string
	Attempts  int
	Throttled bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Throttled {
		return fmt.Sprintf("model %q throttled after %d attempts: %v", e.Model, e.Attempts, e.Cause)
	}
	if e.Provider == "" {
		return fmt.Sprintf("model %q: %v", e.Model, e.Cause)
	}
	return fmt.Sprintf("model %q via %s: %v", e.Model, e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the taxonomy sentinel for this failure.
func (e *Error) Is(target error) bool {
	if e.Throttled {
		return target == genome.ErrThrottled
	}
	return target == genome.ErrGateway
}

// Gateway routes requests to providers, normalises model ids and retries
// throttled calls with exponential backoff.
type Gateway struct {
	source          ProviderSource
	routes          []config.RouteConfig
	defaultProvider string
	aliases         map[string]string
	regionalPrefix  bool
	throttle        config.ThrottleConfig

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ Invoker = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records call latency, errors and throttle retries.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gateway) { g.metrics = c }
}

// WithTracer wraps every invocation in a span.
func WithTracer(t *tracing.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// WithSleep replaces the backoff wait. Tests use it to avoid real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// New creates a Gateway. Zero throttle settings fall back to the config
// defaults.
func New(source ProviderSource, cfg config.GatewayConfig, opts ...Option) *Gateway {
	routes := append([]config.RouteConfig(nil), cfg.Routes...)
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Prefix) > len(routes[j].Prefix)
	})

	aliases := make(map[string]string, len(cfg.Aliases))
	for from, to := range cfg.Aliases {
		aliases[from] = to
	}

	throttle := cfg.Throttle
	if throttle.MaxAttempts < 1 {
		throttle.MaxAttempts = config.DefaultThrottleMaxAttempts
	}
	if throttle.InitialDelay <= 0 {
		throttle.InitialDelay = config.DefaultThrottleInitialDelay
	}
	if throttle.MaxDelay <= 0 {
		throttle.MaxDelay = config.DefaultThrottleMaxDelay
	}

	g := &Gateway{
		source:          source,
		routes:          routes,
		defaultProvider: cfg.DefaultProvider,
		aliases:         aliases,
		regionalPrefix:  cfg.RegionalPrefix,
		throttle:        throttle,
		logger:          slog.Default().With("component", "gateway"),
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NormalizeModel applies the alias map and then the regional prefix rule.
func (g *Gateway) NormalizeModel(modelID string) string {
	modelID = strings.TrimSpace(modelID)
	if to, ok := g.aliases[modelID]; ok {
		modelID = to
	}
	if g.regionalPrefix && strings.HasPrefix(modelID, "amazon.nova") {
		modelID = "us." + modelID
	}
	return modelID
}

// Route returns the provider name serving modelID: the longest matching
// route prefix, else the default provider.
func (g *Gateway) Route(modelID string) (string, error) {
	for _, r := range g.routes {
		if strings.HasPrefix(modelID, r.Prefix) {
			return r.Provider, nil
		}
	}
	if g.defaultProvider == "" {
		return "", fmt.Errorf("no provider route for model %q", modelID)
	}
	return g.defaultProvider, nil
}

// Invoke sends req to the routed provider. Throttled calls are retried up
// to MaxAttempts times, doubling the delay from InitialDelay and capping it
// at MaxDelay. Any other failure is returned at once.
func (g *Gateway) Invoke(ctx context.Context, req Request) (string, error) {
	model := g.NormalizeModel(req.ModelID)
	if model == "" {
		return "", &Error{Cause: genome.NewValidationError("model_id", "is required")}
	}

	ctx, span := g.tracer.Start(ctx, "darwin.gateway.invoke")
	defer span.End()

	name, err := g.Route(model)
	if err != nil {
		tracing.SetStatus(span, err)
		return "", &Error{Model: model, Cause: err}
	}
	provider, err := g.source.GetProvider(name)
	if err != nil {
		tracing.SetStatus(span, err)
		return "", &Error{Model: model, Provider: name, Cause: err}
	}

	creq := &providers.CompletionRequest{
		Model:       model,
		System:      req.System,
		Messages:    toMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	delay := g.throttle.InitialDelay
	attempt := 0
	for {
		attempt++
		start := time.Now()
		resp, err := provider.Complete(ctx, creq)
		elapsed := time.Since(start)

		if err == nil {
			g.metrics.RecordGatewayCall(name, model, "success", elapsed)
			tracing.SetGatewayAttributes(span, name, model, attempt)
			tracing.SetStatus(span, nil)
			g.logger.DebugContext(ctx, "model invoked",
				"provider", name, "model", model, "attempts", attempt, "duration", elapsed)
			return resp.Content, nil
		}

		g.metrics.RecordGatewayCall(name, model, "error", elapsed)
		g.metrics.RecordGatewayError(name, errorType(err))

		if !providers.IsThrottle(err) || ctx.Err() != nil {
			tracing.SetGatewayAttributes(span, name, model, attempt)
			tracing.SetStatus(span, err)
			return "", &Error{Model: model, Provider: name, Attempts: attempt, Cause: err}
		}
		if attempt >= g.throttle.MaxAttempts {
			tracing.SetGatewayAttributes(span, name, model, attempt)
			tracing.SetStatus(span, err)
			g.logger.WarnContext(ctx, "model throttled, giving up",
				"provider", name, "model", model, "attempts", attempt)
			return "", &Error{Model: model, Provider: name, Attempts: attempt, Throttled: true, Cause: err}
		}

		wait := delay
		if ra := providers.RetryAfter(err); ra > wait {
			wait = ra
		}
		if wait > g.throttle.MaxDelay {
			wait = g.throttle.MaxDelay
		}
		g.metrics.RecordThrottleRetry(model)
		g.logger.InfoContext(ctx, "model throttled, backing off",
			"provider", name, "model", model, "attempt", attempt, "wait", wait)

		if err := g.sleep(ctx, wait); err != nil {
			tracing.SetStatus(span, err)
			return "", &Error{Model: model, Provider: name, Attempts: attempt, Cause: err}
		}
		delay *= 2
		if delay > g.throttle.MaxDelay {
			delay = g.throttle.MaxDelay
		}
	}
}

func toMessages(turns []genome.Turn) []providers.Message {
	out := make([]providers.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, providers.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// errorType labels err for the gateway error counter.
func errorType(err error) string {
	var (
		authErr    *providers.AuthError
		timeoutErr *providers.TimeoutError
		parseErr   *providers.ParseError
		validErr   *providers.ValidationError
	)
	switch {
	case providers.IsThrottle(err):
		return "throttled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &validErr):
		return "validation"
	default:
		return "provider"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
