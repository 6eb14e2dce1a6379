package pipeline

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/telemetry/logging"
	"mercator-hq/darwin/pkg/telemetry/metrics"
	"mercator-hq/darwin/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// Stage names, used for logging, metrics and span names.
const (
	StageServing    = "serving"
	StageCritic     = "critic"
	StageMutator    = "mutator"
	StageJudge      = "judge"
	StageSupervisor = "supervisor"
	StageFeedback   = "feedback"
)

// Deps are the collaborators shared by every stage. Only Pool and Gateway
// are required.
type Deps struct {
	Pool    *genepool.Pool
	Gateway gateway.Invoker
	Events  events.Emitter
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// WithDefaults fills the optional fields.
func (d Deps) WithDefaults(stage string) Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With("component", "pipeline."+stage)
	return d
}

// Span starts a stage span tagged with the lineage and chat, and returns a
// context carrying those values for logging.
func (d Deps) Span(ctx context.Context, stage, pk, chatSK string, retryCount int) (context.Context, trace.Span) {
	ctx = logging.WithStage(ctx, stage)
	ctx = logging.WithLineage(ctx, pk)
	if chatSK != "" {
		ctx = logging.WithChat(ctx, chatSK)
	}
	ctx, span := d.Tracer.Start(ctx, "darwin."+stage)
	tracing.SetPipelineAttributes(span, pk, chatSK, retryCount)
	return ctx, span
}

// Finish records the stage outcome on the span and in metrics.
func (d Deps) Finish(span trace.Span, stage, outcome string, start time.Time, err error) {
	if err != nil {
		outcome = "error"
	}
	tracing.SetOutcome(span, outcome)
	tracing.SetStatus(span, err)
	d.Metrics.RecordStage(stage, outcome, time.Since(start))
}

// Ask sends a single-turn prompt to a role model.
func (d Deps) Ask(ctx context.Context, role config.RoleConfig, system, prompt string, temperature float64) (string, error) {
	return d.Gateway.Invoke(ctx, gateway.Request{
		ModelID:     role.ModelID,
		System:      system,
		Messages:    UserTurn(prompt),
		Temperature: temperature,
		MaxTokens:   role.MaxTokens,
	})
}
