// Package runner drives one evolution cycle in-process: critic, then
// mutation rounds of mutator, judge and supervisor until a promotion or an
// escalation.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/critic"
	"mercator-hq/darwin/pkg/pipeline/escalation"
	"mercator-hq/darwin/pkg/pipeline/judge"
	"mercator-hq/darwin/pkg/pipeline/mutator"
	"mercator-hq/darwin/pkg/pipeline/supervisor"
)

// Round records one mutation round.
type Round struct {
	RetryCount    int                `json:"retryCount"`
	ChallengerSKs []string           `json:"challenger_sks"`
	Fallback      bool               `json:"fallback,omitempty"`
	Judge         *judge.Result      `json:"judge"`
	Supervisor    *supervisor.Result `json:"supervisor,omitempty"`
}

// Outcome is the result of a cycle.
type Outcome struct {
	Critic     *critic.Result `json:"critic,omitempty"`
	Rounds     []Round        `json:"rounds,omitempty"`
	Transition string         `json:"transition"`

	// NewActiveVersion is set after a promotion.
	NewActiveVersion string `json:"new_active_version,omitempty"`

	// TicketSK is set after an escalation.
	TicketSK string `json:"ticket_sk,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Promoted reports whether the cycle moved CURRENT.
func (o *Outcome) Promoted() bool { return o.NewActiveVersion != "" }

// Runner wires the stages together.
type Runner struct {
	logger     *slog.Logger
	critic     *critic.Critic
	mutator    *mutator.Mutator
	judge      *judge.Judge
	supervisor *supervisor.Supervisor
	maxRetries int
}

// New builds every stage from the role and evolution settings of cfg.
func New(deps pipeline.Deps, cfg *config.Config) *Runner {
	policy := &escalation.Policy{Deps: deps.WithDefaults("escalation"), MaxRetries: cfg.Evolution.MaxRetries}
	return &Runner{
		logger:  deps.WithDefaults("runner").Logger,
		critic:  critic.New(deps, cfg.Roles.Critic),
		mutator: mutator.New(deps, cfg.Roles.Mutation),
		judge:   judge.New(deps, cfg.Roles.Judge, policy),
		supervisor: supervisor.New(deps, cfg.Roles.Audit, policy, supervisor.Options{
			GuardPointer: cfg.Evolution.GuardPointer,
			CloseTickets: cfg.Evolution.CloseTicketsOnPromotion,
		}),
		maxRetries: cfg.Evolution.MaxRetries,
	}
}

// Critic returns the critic stage.
func (r *Runner) Critic() *critic.Critic { return r.critic }

// Mutator returns the mutation stage.
func (r *Runner) Mutator() *mutator.Mutator { return r.mutator }

// Judge returns the arbitration stage.
func (r *Runner) Judge() *judge.Judge { return r.judge }

// Supervisor returns the promotion stage.
func (r *Runner) Supervisor() *supervisor.Supervisor { return r.supervisor }

// Run evaluates a chat and evolves its genome if the critic fails it.
func (r *Runner) Run(ctx context.Context, pk, chatSK string) (*Outcome, error) {
	cres, err := r.critic.Evaluate(ctx, critic.Request{PK: pk, ChatSK: chatSK})
	if err != nil {
		return nil, fmt.Errorf("critic: %w", err)
	}
	if !cres.Failed() {
		return &Outcome{Critic: cres, Transition: escalation.Complete.String()}, nil
	}
	issue := pipeline.Issue{Reason: cres.Reason()}
	if cres.FailureDetail != nil {
		issue.Rule = cres.FailureDetail.ViolationCategory
	}
	out, err := r.Evolve(ctx, pipeline.Payload{PK: pk, ChatSK: chatSK, GenomeSK: cres.GenomeSK, Issue: issue})
	if out != nil {
		out.Critic = cres
	}
	return out, err
}

// Evolve runs mutation rounds for a failed chat until a winner is
// promoted or the failure is escalated.
func (r *Runner) Evolve(ctx context.Context, p pipeline.Payload) (*Outcome, error) {
	out := &Outcome{}
	for {
		round := Round{RetryCount: p.RetryCount}

		mres, err := r.mutator.Mutate(ctx, p)
		if err != nil {
			return out, fmt.Errorf("mutator: %w", err)
		}
		round.ChallengerSKs, round.Fallback = mres.ChallengerSKs, mres.Fallback
		p.ChallengerSKs = mres.ChallengerSKs

		jres, err := r.judge.Arbitrate(ctx, p)
		if err != nil {
			return out, fmt.Errorf("judge: %w", err)
		}
		round.Judge = jres
		succeeded, reason, ticketSK := jres.Improved, jres.Reason, jres.TicketSK

		if jres.Improved {
			p.WinnerSK, p.PromotionReason = jres.SelectedChallengerSK, jres.Reason
			sres, err := r.supervisor.Promote(ctx, p)
			if err != nil {
				out.Rounds = append(out.Rounds, round)
				return out, fmt.Errorf("supervisor: %w", err)
			}
			round.Supervisor = sres
			succeeded, reason, ticketSK = sres.Compliant, sres.Reason, sres.TicketSK
			if sres.Compliant {
				out.NewActiveVersion = sres.NewActiveVersion
			}
		}
		out.Rounds = append(out.Rounds, round)

		transition, next := escalation.Next(succeeded, p.RetryCount, r.maxRetries)
		out.Transition = transition.String()
		switch transition {
		case escalation.Complete:
			r.logger.InfoContext(ctx, "evolution complete", "pk", p.PK, "new_active_version", out.NewActiveVersion)
			return out, nil
		case escalation.Escalate:
			out.TicketSK, out.Reason = ticketSK, reason
			r.logger.WarnContext(ctx, "evolution escalated", "pk", p.PK, "ticket_sk", ticketSK)
			return out, nil
		default:
			r.logger.InfoContext(ctx, "evolution retrying", "pk", p.PK, "retry", next, "reason", reason)
			p = p.NextRound(next, reason)
		}
	}
}

// Subscribe wires the runner to bus: every served reply is evaluated and
// every failed evaluation is evolved. The critic publishes EvaluationFailed
// through the runner's emitter, so that emitter must reach bus.
func (r *Runner) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.ChatResponseGenerated, func(ctx context.Context, evt events.Event) {
		var d events.ChatResponseDetail
		if err := evt.Decode(&d); err != nil {
			r.logger.ErrorContext(ctx, "bad event", "event", evt.Name, "error", err)
			return
		}
		if _, err := r.critic.Evaluate(ctx, critic.Request{PK: d.PK, ChatSK: d.ChatSK}); err != nil {
			r.logger.ErrorContext(ctx, "evaluation failed", "pk", d.PK, "chat_sk", d.ChatSK, "error", err)
		}
	})
	bus.Subscribe(events.EvaluationFailed, func(ctx context.Context, evt events.Event) {
		var d events.EvaluationFailedDetail
		if err := evt.Decode(&d); err != nil {
			r.logger.ErrorContext(ctx, "bad event", "event", evt.Name, "error", err)
			return
		}
		p := pipeline.Payload{
			PK:       d.PK,
			ChatSK:   d.ChatSK,
			GenomeSK: d.GenomeSK,
			Issue:    pipeline.Issue{Rule: d.Rule, Reason: d.Reason},
		}
		if _, err := r.Evolve(ctx, p); err != nil {
			r.logger.ErrorContext(ctx, "evolution failed", "pk", d.PK, "chat_sk", d.ChatSK, "error", err)
		}
	})
}
