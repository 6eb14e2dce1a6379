// Package judge replays the failing turn with each challenger, picks the
// best replacement answer and checks it for compliance.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/escalation"
	"mercator-hq/darwin/pkg/pipeline/mutator"
)

// Reasons and ticket text of the judge.
const (
	NoImprovement        = "No challenger improved on the failure."
	CompliancePrefix     = "Improved logic but failed Compliance: "
	UnknownFailure       = "Unknown failure"
	TicketFeedback       = "Automated Alert: Judge marked evolution as FAIL after retries."
	SimulationMaxTokens  = 800
	maxParallelSimulates = 4
)

// Result is the judge's decision.
type Result struct {
	Improved             bool   `json:"improved"`
	SelectedChallengerSK string `json:"selected_challenger_sk,omitempty"`
	ImprovedResponse     string `json:"improved_response,omitempty"`
	Reason               string `json:"reason"`
	RetryCount           int    `json:"retryCount"`

	// FailedChallengerSK names a winner that failed compliance.
	FailedChallengerSK string `json:"failed_challenger_sk,omitempty"`

	// Terminal and TicketSK are set when the failure was escalated.
	Terminal bool   `json:"terminal,omitempty"`
	TicketSK string `json:"ticket_sk,omitempty"`
}

// Candidate is one simulated challenger answer.
type Candidate struct {
	ChallengerSK string `json:"challenger_sk"`
	Response     string `json:"response"`
}

// Judge is the arbitration stage.
type Judge struct {
	deps   pipeline.Deps
	role   config.RoleConfig
	policy *escalation.Policy
}

// New creates a judge that arbitrates with role and escalates through
// policy.
func New(deps pipeline.Deps, role config.RoleConfig, policy *escalation.Policy) *Judge {
	return &Judge{deps: deps.WithDefaults(pipeline.StageJudge), role: role, policy: policy}
}

// Arbitrate simulates the challengers of p against the failing chat. A
// compliant winner is returned as improved; otherwise the failure goes
// through the escalation policy.
func (j *Judge) Arbitrate(ctx context.Context, p pipeline.Payload) (res *Result, err error) {
	start := time.Now()
	if p.PK == "" || p.ChatSK == "" || p.GenomeSK == "" {
		return nil, genome.NewValidationError("chat_sk", "pk, genome_sk and chat_sk are required")
	}
	ctx, span := j.deps.Span(ctx, pipeline.StageJudge, p.PK, p.ChatSK, p.RetryCount)
	defer span.End()
	outcome := "winner"
	defer func() { j.deps.Finish(span, pipeline.StageJudge, outcome, start, err) }()

	parent, err := j.deps.Pool.GetVersion(ctx, p.PK, p.GenomeSK)
	if err != nil {
		return nil, err
	}
	chat, err := j.deps.Pool.GetChat(ctx, p.PK, p.ChatSK)
	if err != nil {
		return nil, err
	}
	idx := len(chat.Transcript) - 1
	if chat.FailureTurnIndex != nil {
		idx = *chat.FailureTurnIndex
	}
	if idx < 0 || idx >= len(chat.Transcript) {
		return nil, genome.NewValidationError("failure_turn_index",
			fmt.Sprintf("turn %d is outside a transcript of %d turns", idx, len(chat.Transcript)))
	}
	history := chat.Transcript[:idx]
	badResponse := chat.Transcript[idx].Content
	issue := chat.CriticReason
	if issue == "" {
		issue = UnknownFailure
	}

	challengers, err := j.challengers(ctx, p)
	if err != nil {
		return nil, err
	}
	candidates := j.simulate(ctx, parent, challengers, history)

	winner := j.compare(ctx, issue, badResponse, candidates, history)
	if winner == nil {
		outcome = "no_winner"
		return j.fail(ctx, p, NoImprovement, "")
	}

	passed, reason := j.comply(ctx, winner.Response, parent)
	if !passed {
		outcome = "noncompliant"
		return j.fail(ctx, p, CompliancePrefix+reason, winner.ChallengerSK)
	}

	j.deps.Logger.InfoContext(ctx, "challenger selected", "challenger_sk", winner.ChallengerSK)
	return &Result{
		Improved:             true,
		SelectedChallengerSK: winner.ChallengerSK,
		ImprovedResponse:     winner.Response,
		Reason:               reason,
		RetryCount:           p.RetryCount,
	}, nil
}

// challengers loads the challengers named in p, or those of the current
// round when p names none. Missing ones are skipped.
func (j *Judge) challengers(ctx context.Context, p pipeline.Payload) ([]*genome.Version, error) {
	if len(p.ChallengerSKs) == 0 {
		all, err := j.deps.Pool.ListChallengers(ctx, p.PK, p.GenomeSK)
		if err != nil {
			return nil, err
		}
		first, last := mutator.AttemptNumber(p.RetryCount, 0), mutator.AttemptNumber(p.RetryCount, mutator.Candidates-1)
		var out []*genome.Version
		for _, c := range all {
			if c.Attempt >= first && c.Attempt <= last {
				out = append(out, c)
			}
		}
		return out, nil
	}

	out := make([]*genome.Version, 0, len(p.ChallengerSKs))
	for _, sk := range p.ChallengerSKs {
		c, err := j.deps.Pool.GetChallenger(ctx, p.PK, sk)
		if err != nil {
			j.deps.Logger.WarnContext(ctx, "challenger skipped", "challenger_sk", sk, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// simulate answers history with each challenger's brain on the parent's
// resources and capabilities. Failed simulations are dropped; the order of
// the rest is kept.
func (j *Judge) simulate(ctx context.Context, parent *genome.Version, challengers []*genome.Version, history []genome.Turn) []Candidate {
	results := make([]*Candidate, len(challengers))
	var g errgroup.Group
	g.SetLimit(maxParallelSimulates)
	for i, c := range challengers {
		g.Go(func() error {
			cfg := c.Config
			if cfg == nil {
				cfg = parent.Config
			}
			if cfg == nil || cfg.ModelID == "" {
				j.deps.Logger.WarnContext(ctx, "challenger has no model", "challenger_sk", c.SortKey)
				return nil
			}
			composite := &genome.Version{
				Brain:        c.Brain,
				Config:       cfg,
				Resources:    parent.Resources,
				Capabilities: parent.Capabilities,
			}
			reply, err := j.deps.Gateway.Invoke(ctx, gateway.Request{
				ModelID:     cfg.ModelID,
				System:      composite.SystemPrompt(),
				Messages:    history,
				Temperature: 0,
				MaxTokens:   SimulationMaxTokens,
			})
			if err != nil {
				j.deps.Logger.WarnContext(ctx, "challenger simulation failed", "challenger_sk", c.SortKey, "error", err)
				return nil
			}
			results[i] = &Candidate{ChallengerSK: c.SortKey, Response: reply}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// compare asks the judge role which candidate best fixes issue. Any error
// or an out-of-range answer means no winner.
func (j *Judge) compare(ctx context.Context, issue, badResponse string, candidates []Candidate, history []genome.Turn) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	lastUser := "Start"
	if len(history) > 0 {
		lastUser = history[len(history)-1].Content
	}
	type entry struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	}
	list := make([]entry, len(candidates))
	for i, c := range candidates {
		list[i] = entry{ID: i, Text: c.Response}
	}
	listJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil
	}

	prompt := fmt.Sprintf(`You are a QA comparator.
CRITIC ISSUE: %s
USER INPUT: %q
ORIGINAL FAIL: %q

CANDIDATES:
%s

Select the candidate that best resolves the critic issue, or -1 if none does.
Return JSON {"winner_id": <int or -1>, "reason": "<string>"}.`, issue, lastUser, badResponse, listJSON)

	out, err := j.deps.Ask(ctx, j.role, "", prompt, 0)
	if err != nil {
		j.deps.Logger.WarnContext(ctx, "comparator failed", "error", err)
		return nil
	}
	var verdict struct {
		WinnerID pipeline.FlexInt `json:"winner_id"`
		Reason   string           `json:"reason"`
	}
	if err := pipeline.DecodeObject(pipeline.StageJudge, out, &verdict); err != nil {
		j.deps.Logger.WarnContext(ctx, "comparator output rejected", "error", err)
		return nil
	}
	id := verdict.WinnerID.Value
	if id == nil || *id < 0 || *id >= len(candidates) {
		return nil
	}
	return &candidates[*id]
}

// comply checks a response against the parent's knowledge base, policy and
// rubric. Errors count as a failed check.
func (j *Judge) comply(ctx context.Context, response string, parent *genome.Version) (bool, string) {
	var kb, policy string
	if parent.Resources != nil {
		kb, policy = parent.Resources.KnowledgeBaseText, parent.Resources.PolicyText
	}
	var rubric []string
	if parent.EvolutionConfig != nil {
		rubric = parent.EvolutionConfig.JudgeRubric
	}
	prompt := fmt.Sprintf(`STRICT COMPLIANCE CHECK.
Context: %s
Policy: %s
Rubric:
%s

Candidate: %q

Check: 1. No hallucinations? 2. Follows policy? 3. Passes rubric?
Output JSON: {"passed": <boolean>, "reason": "<concise string>"}`, kb, policy, pipeline.FormatList(rubric), response)

	out, err := j.deps.Ask(ctx, j.role, "", prompt, 0)
	if err != nil {
		return false, "Judge Error: " + err.Error()
	}
	var verdict struct {
		Passed bool   `json:"passed"`
		Reason string `json:"reason"`
	}
	if err := pipeline.DecodeObject(pipeline.StageJudge, out, &verdict); err != nil {
		return false, "Judge Error: " + err.Error()
	}
	return verdict.Passed, strings.TrimSpace(verdict.Reason)
}

func (j *Judge) fail(ctx context.Context, p pipeline.Payload, reason, challengerSK string) (*Result, error) {
	j.deps.Logger.InfoContext(ctx, "evolution round failed", "reason", reason)
	out, err := j.policy.HandleFailure(ctx, p, escalation.Failure{
		Reason:       reason,
		ChallengerSK: challengerSK,
		Feedback:     TicketFeedback,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Reason:             out.Reason,
		RetryCount:         out.RetryCount,
		Terminal:           out.Terminal,
		TicketSK:           out.TicketSK,
		FailedChallengerSK: challengerSK,
	}, nil
}
