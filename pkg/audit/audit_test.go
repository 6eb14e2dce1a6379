package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/darwin/internal/pipelinetest"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/telemetry/metrics"
)

func newCollector() *metrics.Collector {
	return metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "darwin"}, prometheus.NewRegistry())
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, env *pipelinetest.Env)
		wantReason string
	}{
		{
			name:  "healthy",
			setup: func(t *testing.T, env *pipelinetest.Env) { env.Seed(t, pipelinetest.Genome()) },
		},
		{
			name: "pointer to missing version",
			setup: func(t *testing.T, env *pipelinetest.Env) {
				_, err := env.Pool.SetPointer(context.Background(), pipelinetest.Lineage, genome.VersionKey(pipelinetest.Start.Add(-time.Hour)), "test")
				if err != nil {
					t.Fatal(err)
				}
			},
			wantReason: "CURRENT does not resolve",
		},
		{
			name: "pointer to draft",
			setup: func(t *testing.T, env *pipelinetest.Env) {
				v := pipelinetest.Genome()
				v.Metadata.DeploymentState = genome.StateDraft
				env.Seed(t, v)
			},
			wantReason: "in state DRAFT",
		},
		{
			name: "orphan challenger hash",
			setup: func(t *testing.T, env *pipelinetest.Env) {
				v := env.Seed(t, pipelinetest.Genome())
				c := pipelinetest.Genome()
				c.SortKey = genome.ChallengerKey(v.SortKey, 1)
				c.Metadata.DeploymentState = genome.StatePendingApproval
				c.Metadata.ParentHash = "ffffffffffffffff"
				if err := env.Pool.PutChallenger(context.Background(), c); err != nil {
					t.Fatal(err)
				}
			},
			wantReason: "does not match",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := pipelinetest.NewEnv(t)
			tt.setup(t, env)
			collector := newCollector()

			report, err := New(env.Pool, nil, collector).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Checked != 1 {
				t.Errorf("checked = %d", report.Checked)
			}
			if tt.wantReason == "" {
				if !report.OK() {
					t.Errorf("violations = %+v", report.Violations)
				}
			} else if report.OK() || !strings.Contains(report.Violations[0].Reason, tt.wantReason) {
				t.Errorf("violations = %+v, want %q", report.Violations, tt.wantReason)
			}
			if n, err := testutil.GatherAndCount(collector.Registry(), "darwin_pointer_audit_runs_total"); err != nil || n != 1 {
				t.Errorf("audit runs series = %d, err = %v", n, err)
			}
		})
	}
}

func TestCheck_Cancelled(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	env.Seed(t, pipelinetest.Genome())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(env.Pool, nil, nil).Check(ctx, pipelinetest.Lineage); err == nil {
		t.Fatal("expected context error")
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"descriptor", "@every 1h", true, false},
		{"cron expression", "0 * * * *", true, false},
		{"empty", "", false, false},
		{"invalid", "every tuesday", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := pipelinetest.NewEnv(t)
			s := NewScheduler(New(env.Pool, nil, nil), tt.schedule, nil)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				next := s.NextRun()
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextRun() = %v", next)
				}
				s.Stop()
				if s.IsRunning() {
					t.Error("still running after Stop")
				}
			}
		})
	}
}

func TestScheduler_RunStoresReport(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	env.Seed(t, pipelinetest.Genome())
	s := NewScheduler(New(env.Pool, nil, nil), "@every 1h", nil)

	s.run(context.Background())
	if r := s.LastReport(); r == nil || r.Checked != 1 || !r.OK() {
		t.Errorf("last report = %+v", r)
	}
}
