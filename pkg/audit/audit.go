// Package audit verifies that every lineage's CURRENT pointer resolves to an
// ACTIVE version and that its challengers nest under the versions they
// claim as parents.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/telemetry/metrics"
)

// Violation is one lineage that failed the audit.
type Violation struct {
	PK     string `json:"pk"`
	Reason string `json:"reason"`
}

// Report is the result of one audit run.
type Report struct {
	StartedAt  time.Time   `json:"started_at"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations,omitempty"`
}

// OK reports whether no lineage failed.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Auditor checks lineages in a pool.
type Auditor struct {
	pool    *genepool.Pool
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates an auditor. logger and collector may be nil.
func New(pool *genepool.Pool, logger *slog.Logger, collector *metrics.Collector) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{pool: pool, logger: logger.With("component", "audit"), metrics: collector}
}

// Run audits every partition of the pool.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	pks, err := a.pool.ListPartitions(ctx)
	if err != nil {
		a.metrics.RecordAudit(0, err)
		return nil, fmt.Errorf("failed to list lineages: %w", err)
	}
	return a.Check(ctx, pks...)
}

// Check audits the given partitions.
func (a *Auditor) Check(ctx context.Context, pks ...string) (*Report, error) {
	report := &Report{StartedAt: a.pool.Now()}
	for _, pk := range pks {
		if err := ctx.Err(); err != nil {
			a.metrics.RecordAudit(0, err)
			return nil, err
		}
		report.Checked++
		reason, err := a.check(ctx, pk)
		if err != nil {
			a.metrics.RecordAudit(0, err)
			return nil, fmt.Errorf("audit %s: %w", pk, err)
		}
		if reason != "" {
			a.logger.WarnContext(ctx, "lineage failed audit", "pk", pk, "reason", reason)
			report.Violations = append(report.Violations, Violation{PK: pk, Reason: reason})
		}
	}
	a.metrics.RecordAudit(len(report.Violations), nil)
	a.logger.InfoContext(ctx, "audit complete", "checked", report.Checked, "violations", len(report.Violations))
	return report, nil
}

// check returns a violation reason, or an error when the store fails.
func (a *Auditor) check(ctx context.Context, pk string) (string, error) {
	v, err := a.pool.ResolveActive(ctx, pk)
	switch {
	case errors.Is(err, genome.ErrNotFound):
		return "CURRENT does not resolve: " + err.Error(), nil
	case err != nil:
		return "", err
	}
	if v.Metadata.DeploymentState != genome.StateActive {
		return fmt.Sprintf("CURRENT names %s in state %s", v.SortKey, v.Metadata.DeploymentState), nil
	}
	if err := genome.ValidateServable(v); err != nil {
		return fmt.Sprintf("CURRENT names unservable %s: %v", v.SortKey, err), nil
	}

	lineage, err := a.pool.Lineage(ctx, pk)
	if err != nil {
		return "", err
	}
	if err := lineage.Verify(); err != nil {
		return err.Error(), nil
	}
	return "", nil
}
