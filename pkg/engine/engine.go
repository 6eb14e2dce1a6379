// Package engine assembles the gene pool, the inference gateway, the event
// emitter and every pipeline stage from a configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"mercator-hq/darwin/pkg/audit"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/feedback"
	"mercator-hq/darwin/pkg/pipeline/runner"
	"mercator-hq/darwin/pkg/pipeline/serving"
	"mercator-hq/darwin/pkg/providerfactory"
	"mercator-hq/darwin/pkg/providers"
	"mercator-hq/darwin/pkg/store"
	"mercator-hq/darwin/pkg/telemetry/metrics"
	"mercator-hq/darwin/pkg/telemetry/tracing"
)

// Telemetry is shared by every engine built in a process. The metrics
// registry outlives configuration reloads.
type Telemetry struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Engine holds one fully wired set of components.
type Engine struct {
	Config   *config.Config
	Pool     *genepool.Pool
	Gateway  gateway.Invoker
	Events   events.Emitter
	Bus      *events.Bus
	Serving  *serving.Service
	Feedback *feedback.Service
	Runner   *runner.Runner
	Auditor  *audit.Auditor

	providers *providerfactory.Manager
	closers   []io.Closer
	logger    *slog.Logger
}

// Option overrides a component built by New.
type Option func(*options)

type options struct {
	store   store.Store
	invoker gateway.Invoker
	emitter events.Emitter
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithInvoker uses inv instead of the provider gateway.
func WithInvoker(inv gateway.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithEmitter uses e instead of the configured events backend.
func WithEmitter(e events.Emitter) Option {
	return func(o *options) { o.emitter = e }
}

// New builds an engine from cfg. On error every component opened so far is
// closed.
func New(ctx context.Context, cfg *config.Config, tel Telemetry, opts ...Option) (_ *Engine, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := tel.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{Config: cfg, logger: logger.With("component", "engine")}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	s := o.store
	if s == nil {
		s, err = store.Open(ctx, store.Options{
			Backend: cfg.Store.Backend,
			SQLite: store.SQLiteConfig{
				Path:        cfg.Store.SQLite.Path,
				Driver:      cfg.Store.SQLite.Driver,
				WALMode:     cfg.Store.SQLite.WALMode,
				BusyTimeout: cfg.Store.SQLite.BusyTimeout,
			},
			Postgres: store.PostgresConfig{
				DSN:      cfg.Store.Postgres.DSN,
				MaxConns: cfg.Store.Postgres.MaxConns,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		e.closers = append(e.closers, s)
	}
	e.Pool = genepool.New(s, genepool.WithLogger(logger))

	e.Gateway = o.invoker
	if e.Gateway == nil {
		e.providers = providerfactory.NewManager()
		if err := e.providers.LoadFromConfig(ProviderConfigs(cfg.Providers)); err != nil {
			logger.Warn("some providers failed to initialize", "error", err)
		}
		e.Gateway = gateway.New(e.providers, cfg.Gateway,
			gateway.WithLogger(logger), gateway.WithMetrics(tel.Metrics), gateway.WithTracer(tel.Tracer))
	}

	e.Events = o.emitter
	if e.Events == nil {
		emitter, err := events.Open(ctx, cfg.Events, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open events backend: %w", err)
		}
		if c, ok := emitter.(io.Closer); ok {
			e.closers = append(e.closers, c)
		}
		e.Events = emitter
	}
	if cfg.Events.Orchestrate {
		e.Bus = events.NewBus(events.DefaultBusConfig(), logger)
		e.Events = events.FanOut{e.Events, e.Bus}
	}

	deps := pipeline.Deps{
		Pool:    e.Pool,
		Gateway: e.Gateway,
		Events:  e.Events,
		Logger:  logger,
		Metrics: tel.Metrics,
		Tracer:  tel.Tracer,
	}
	e.Serving = serving.New(deps)
	e.Feedback = feedback.New(deps, cfg.Roles.Feedback)
	e.Runner = runner.New(deps, cfg)
	e.Auditor = audit.New(e.Pool, logger, tel.Metrics)
	if e.Bus != nil {
		e.Runner.Subscribe(e.Bus)
	}
	return e, nil
}

// ProviderConfigs converts the providers section, ordered by name.
func ProviderConfigs(in map[string]config.ProviderConfig) []providers.ProviderConfig {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]providers.ProviderConfig, 0, len(in))
	for _, name := range names {
		pc := in[name]
		out = append(out, providers.ProviderConfig{
			Name:                name,
			Type:                pc.Type,
			BaseURL:             pc.BaseURL,
			APIKey:              pc.APIKey,
			Timeout:             pc.Timeout,
			MaxRetries:          pc.MaxRetries,
			HealthCheckInterval: pc.HealthCheckInterval,
		})
	}
	return out
}

// CheckStore reports whether the gene pool answers reads.
func (e *Engine) CheckStore(ctx context.Context) error {
	_, err := e.Pool.Store().Get(ctx, "__health__", "CURRENT")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// CheckProviders fails when providers are configured but none is healthy.
func (e *Engine) CheckProviders(context.Context) error {
	if e.providers == nil || e.providers.ProviderCount() == 0 {
		return nil
	}
	if len(e.providers.GetHealthyProviders()) == 0 {
		return errors.New("no healthy providers")
	}
	return nil
}

// Close drains the event bus and releases every component.
func (e *Engine) Close() error {
	var errs []error
	if e.Bus != nil {
		e.Bus.Wait()
		errs = append(errs, e.Bus.Close())
	}
	if e.providers != nil {
		errs = append(errs, e.providers.Close())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}
