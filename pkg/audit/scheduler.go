package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one audit run. *Auditor implements it.
type Job interface {
	Run(ctx context.Context) (*Report, error)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) (*Report, error)

// Run calls f.
func (f JobFunc) Run(ctx context.Context) (*Report, error) { return f(ctx) }

// Scheduler runs an audit job on a cron schedule.
type Scheduler struct {
	job      Job
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	last     *Report
}

// NewScheduler creates a scheduler. schedule accepts standard cron
// expressions and descriptors such as "@every 1h".
func NewScheduler(job Job, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		job:      job,
		schedule: schedule,
		logger:   logger.With("component", "audit.scheduler"),
		cron:     cron.New(),
	}
}

// Start schedules the audit. It stops when ctx is cancelled. An empty
// schedule leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("audit schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("audit scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.job.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled audit failed", "error", err)
		return
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}

// Stop stops the scheduler and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	// The job takes mu to store its report, so wait unlocked.
	if running {
		<-s.cron.Stop().Done()
		s.logger.Info("audit scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the report of the most recent scheduled run.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the next scheduled audit time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
