// Package critic audits a conversation against the critic rules of the
// genome that served it.
package critic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

// DefaultFailureReason is reported when a FAIL verdict carries no reasoning.
const DefaultFailureReason = "Critic rule violation detected"

// Request names the conversation to audit.
type Request struct {
	PK     string `json:"pk"`
	ChatSK string `json:"chat_sk"`
}

// FailureDetail locates a rule violation.
type FailureDetail struct {
	TurnIndex         pipeline.FlexInt `json:"turn_index"`
	ViolationCategory string           `json:"violation_category"`
	Reasoning         string           `json:"reasoning"`
}

// Result is the critic's verdict.
type Result struct {
	Verdict       genome.Verdict `json:"verdict"`
	FailureDetail *FailureDetail `json:"failure_detail,omitempty"`
	GenomeSK      string         `json:"genome_sk"`
	ChatSK        string         `json:"chat_sk"`
}

// Failed reports a FAIL verdict.
func (r *Result) Failed() bool { return r.Verdict == genome.VerdictFail }

// Reason returns the failure reasoning, or the default.
func (r *Result) Reason() string {
	if r.FailureDetail != nil && strings.TrimSpace(r.FailureDetail.Reasoning) != "" {
		return r.FailureDetail.Reasoning
	}
	return DefaultFailureReason
}

// Critic is the evaluation stage.
type Critic struct {
	deps pipeline.Deps
	role config.RoleConfig
}

// New creates a critic that asks role for verdicts.
func New(deps pipeline.Deps, role config.RoleConfig) *Critic {
	return &Critic{deps: deps.WithDefaults(pipeline.StageCritic), role: role}
}

// Evaluate audits a chat, records the verdict on it and emits
// EvaluationFailed on FAIL.
func (c *Critic) Evaluate(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	if req.PK == "" || req.ChatSK == "" {
		return nil, genome.NewValidationError("chat_sk", "pk and chat_sk are required")
	}
	genomeSK, err := genome.VersionFromChat(req.ChatSK)
	if err != nil {
		return nil, err
	}

	ctx, span := c.deps.Span(ctx, pipeline.StageCritic, req.PK, req.ChatSK, 0)
	defer span.End()
	defer func() {
		outcome := ""
		if res != nil {
			outcome = strings.ToLower(string(res.Verdict))
		}
		c.deps.Finish(span, pipeline.StageCritic, outcome, start, err)
	}()

	chat, err := c.deps.Pool.GetChat(ctx, req.PK, req.ChatSK)
	if err != nil {
		return nil, err
	}
	g, err := c.deps.Pool.GetVersion(ctx, req.PK, genomeSK)
	if err != nil {
		return nil, err
	}
	if g.EvolutionConfig == nil || len(g.EvolutionConfig.CriticRules) == 0 {
		return nil, genome.NewValidationError("evolution_config.critic_rules", "genome declares no critic rules")
	}

	out, err := c.deps.Ask(ctx, c.role, systemPrompt, userPrompt(chat, g), 0)
	if err != nil {
		return nil, err
	}
	res, err = parseVerdict(out)
	if err != nil {
		c.deps.Logger.WarnContext(ctx, "unparsable critic output", "output", pipeline.Truncate(out, 200))
		return nil, err
	}
	res.GenomeSK = genomeSK
	res.ChatSK = req.ChatSK

	chat.CriticVerdict = res.Verdict
	chat.CriticReason = ""
	chat.FailureTurnIndex = nil
	if res.Failed() && res.FailureDetail != nil {
		chat.CriticReason = res.FailureDetail.Reasoning
		chat.FailureTurnIndex = res.FailureDetail.TurnIndex.Value
	}
	chat.UpdatedAt = genome.FormatTimestamp(c.deps.Pool.Now())
	if err := c.deps.Pool.PutChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to record verdict: %w", err)
	}
	c.deps.Logger.InfoContext(ctx, "conversation evaluated", "verdict", res.Verdict)

	if res.Failed() {
		detail := events.EvaluationFailedDetail{
			PK:       req.PK,
			ChatSK:   req.ChatSK,
			GenomeSK: genomeSK,
			Reason:   res.Reason(),
		}
		if res.FailureDetail != nil {
			detail.Rule = res.FailureDetail.ViolationCategory
		}
		events.Fire(ctx, c.deps.Events, c.deps.Logger, events.EvaluationFailed, events.SourceCritic, detail)
	}
	return res, nil
}

func parseVerdict(out string) (*Result, error) {
	var res Result
	if err := pipeline.DecodeObject(pipeline.StageCritic, out, &res); err != nil {
		return nil, err
	}
	res.Verdict = genome.Verdict(strings.ToUpper(strings.TrimSpace(string(res.Verdict))))
	if res.Verdict != genome.VerdictPass && res.Verdict != genome.VerdictFail {
		return nil, &genome.ParseError{
			Stage: pipeline.StageCritic,
			Raw:   out,
			Cause: fmt.Errorf("verdict %q is neither PASS nor FAIL", res.Verdict),
		}
	}
	return &res, nil
}

const systemPrompt = `You are a strict quality assurance auditor for AI agent conversations.

Evaluate the assistant's turns against the CRITIC RULES only.
1. Work out what the user asked for.
2. Check each assistant answer against the knowledge base.
3. Go through the critic rules one by one. Any violation, or any required action that was skipped, is a FAIL.
4. Decide PASS or FAIL.

After reasoning, output a single JSON block:
` + "```json" + `
{
  "verdict": "PASS" or "FAIL",
  "failure_detail": {
    "turn_index": <integer or null>,
    "violation_category": "<exact text of the violated rule>",
    "reasoning": "<concise explanation>"
  }
}
` + "```"

func userPrompt(chat *genome.Chat, g *genome.Version) string {
	var b strings.Builder
	b.WriteString("Audit the following conversation transcript against the critic rules.\n\n<genome_dna>\n")
	role, tone := "N/A", "N/A"
	var brain genome.Brain
	if g.Brain != nil {
		brain = *g.Brain
		if brain.Persona != nil {
			role, tone = brain.Persona.Role, brain.Persona.Tone
		}
	}
	fmt.Fprintf(&b, "PERSONA:\nRole: %s\nTone: %s\n\n", role, tone)
	fmt.Fprintf(&b, "OBJECTIVES:\n%s\n\n", pipeline.FormatList(brain.Objectives))
	fmt.Fprintf(&b, "OPERATIONAL GUIDELINES:\n%s\n\n", pipeline.FormatList(brain.OperationalGuidelines))
	var kb, policy string
	if g.Resources != nil {
		kb, policy = g.Resources.KnowledgeBaseText, g.Resources.PolicyText
	}
	fmt.Fprintf(&b, "KNOWLEDGE BASE:\n%s\n</genome_dna>\n\n<policy>\n%s\n</policy>\n\n", kb, policy)
	fmt.Fprintf(&b, "CRITIC RULES (FAIL if ANY of these are violated):\n%s\n\n", pipeline.FormatList(g.EvolutionConfig.CriticRules))
	fmt.Fprintf(&b, "<transcript>\n%s\n</transcript>\n\n", pipeline.FormatTranscript(chat.Transcript))
	b.WriteString("If ANY critic rule is violated return FAIL with the turn_index where it happened, otherwise PASS. Output only valid JSON.")
	return b.String()
}
