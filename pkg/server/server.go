// Package server exposes the pipeline stages over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"mercator-hq/darwin/pkg/audit"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/engine"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/critic"
	"mercator-hq/darwin/pkg/pipeline/feedback"
	"mercator-hq/darwin/pkg/pipeline/serving"
	"mercator-hq/darwin/pkg/telemetry/health"
	"mercator-hq/darwin/pkg/telemetry/metrics"
	"mercator-hq/darwin/pkg/telemetry/tracing"
)

// Builder creates an engine for a configuration. Reload uses it.
type Builder func(ctx context.Context, cfg *config.Config) (*engine.Engine, error)

// Options configure a Server.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Version string

	// Build enables Reload.
	Build Builder
}

// Server serves the HTTP API over the current engine. The engine can be
// swapped while requests are in flight.
type Server struct {
	cfg     config.ServerConfig
	engine  atomic.Pointer[engine.Engine]
	health  *health.Checker
	metrics *metrics.Collector
	logger  *slog.Logger
	build   Builder

	reloadMu   sync.Mutex
	mu         sync.Mutex
	httpServer *http.Server
	scheduler  *audit.Scheduler
}

// New creates a server over eng.
func New(eng *engine.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     eng.Config.Server,
		health:  health.New(0, opts.Version),
		metrics: opts.Metrics,
		logger:  logger.With("component", "server"),
		build:   opts.Build,
	}
	if s.cfg.MaxRequestBytes <= 0 {
		s.cfg.MaxRequestBytes = config.DefaultMaxRequestBytes
	}
	s.engine.Store(eng)
	s.health.Register("store", func(ctx context.Context) error { return s.Engine().CheckStore(ctx) })
	s.health.Register("providers", func(ctx context.Context) error { return s.Engine().CheckProviders(ctx) })
	return s
}

// Engine returns the engine currently serving requests.
func (s *Server) Engine() *engine.Engine {
	return s.engine.Load()
}

// Reload builds an engine for cfg and swaps it in. The previous engine is
// closed once its pending events are dispatched. Listener settings take
// effect on restart only.
func (s *Server) Reload(ctx context.Context, cfg *config.Config) error {
	if s.build == nil {
		return errors.New("server was created without a builder")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	next, err := s.build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	prev := s.engine.Swap(next)
	s.logger.InfoContext(ctx, "engine reloaded",
		"store", cfg.Store.Backend, "events", cfg.Events.Backend, "orchestrate", cfg.Events.Orchestrate)
	if prev != nil {
		go func() {
			if err := prev.Close(); err != nil {
				s.logger.Warn("failed to close previous engine", "error", err)
			}
		}()
	}
	return nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat", handle[serving.Request, *serving.Response](s, chat))
	mux.Handle("POST /v1/feedback", handle[feedback.Request, *feedback.Result](s, submitFeedback))
	mux.Handle("POST /v1/pipeline/critic", handle[critic.Request, *critic.Result](s, evaluate))
	mux.Handle("POST /v1/pipeline/mutator", handle[pipeline.Payload, any](s, mutate))
	mux.Handle("POST /v1/pipeline/judge", handle[pipeline.Payload, any](s, arbitrate))
	mux.Handle("POST /v1/pipeline/supervisor", handle[pipeline.Payload, any](s, promote))
	mux.HandleFunc("GET /v1/lineages/{pk}/tickets", s.listTickets)
	mux.Handle("GET /health", s.health.Handler())
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = LoggingMiddleware(s.logger)(h)
	h = RequestIDMiddleware(h)
	h = tracing.HTTPMiddleware(h)
	h = RecoveryMiddleware(s.logger)(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully. When
// the engine's config enables it, the pointer audit runs on its schedule.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if ac := s.Engine().Config.Audit; ac.Enabled {
		s.scheduler = newScheduler(s, ac.Schedule)
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

func newScheduler(s *Server, schedule string) *audit.Scheduler {
	job := audit.JobFunc(func(ctx context.Context) (*audit.Report, error) {
		return s.Engine().Auditor.Run(ctx)
	})
	return audit.NewScheduler(job, schedule, s.logger)
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
