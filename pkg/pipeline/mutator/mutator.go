// Package mutator proposes challenger brains that try to fix a critic
// finding and stores them under the failing version.
package mutator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

// Candidates is the number of challengers per round.
const Candidates = 3

// Challenger defaults.
const (
	Creator            = "Darwinian_Mutator_Agent"
	DefaultTokenBudget = 600
	EstimatedCost      = "$0.001"
)

// Sampling temperatures of the first and of later rounds.
const (
	FirstRoundTemperature = 0.8
	RetryTemperature      = 0.4
)

// Result lists the challengers written by one round.
type Result struct {
	ChallengerSKs []string `json:"challenger_sks"`
	Fallback      bool     `json:"fallback,omitempty"`
}

// Mutator is the mutation stage.
type Mutator struct {
	deps pipeline.Deps
	role config.RoleConfig
}

// New creates a mutator that asks role for brains.
func New(deps pipeline.Deps, role config.RoleConfig) *Mutator {
	return &Mutator{deps: deps.WithDefaults(pipeline.StageMutator), role: role}
}

// AttemptNumber returns the attempt number of candidate i in round retry.
// Round 0 uses 1-3, round 1 uses 4-6.
func AttemptNumber(retry, i int) int {
	return 1 + Candidates*retry + i
}

// Mutate writes three challengers of p.GenomeSK. When the model call fails
// or its output cannot be parsed into exactly three brains, FallbackBrains
// are written instead. Store and validation errors are returned.
func (m *Mutator) Mutate(ctx context.Context, p pipeline.Payload) (res *Result, err error) {
	start := time.Now()
	if p.PK == "" || p.GenomeSK == "" {
		return nil, genome.NewValidationError("genome_sk", "pk and genome_sk are required")
	}
	ctx, span := m.deps.Span(ctx, pipeline.StageMutator, p.PK, p.ChatSK, p.RetryCount)
	defer span.End()
	defer func() {
		outcome := "generated"
		if res != nil && res.Fallback {
			outcome = "fallback"
		}
		m.deps.Finish(span, pipeline.StageMutator, outcome, start, err)
	}()

	parent, err := m.deps.Pool.GetVersion(ctx, p.PK, p.GenomeSK)
	if err != nil {
		return nil, err
	}
	if parent.Brain == nil {
		return nil, genome.NewValidationError("brain", "parent genome has no brain to mutate")
	}
	issue := p.Issue.WithDefaults()

	prompt, err := userPrompt(parent.Brain, issue, p.RetryContext)
	if err != nil {
		return nil, err
	}
	temperature := FirstRoundTemperature
	if p.RetryCount > 0 {
		temperature = RetryTemperature
	}
	res = &Result{}
	var brains []*genome.Brain
	out, aerr := m.deps.Ask(ctx, m.role, systemPrompt, prompt, temperature)
	switch {
	case aerr != nil && ctx.Err() != nil:
		return nil, aerr
	case aerr != nil:
		m.deps.Logger.WarnContext(ctx, "mutation model failed, using fallback mutations", "error", aerr)
	default:
		var perr error
		if brains, perr = ParseMutations(out); perr != nil {
			m.deps.Logger.WarnContext(ctx, "mutation output rejected, using fallback mutations",
				"error", perr, "output", pipeline.Truncate(out, 200))
		}
	}
	if brains == nil {
		m.deps.Metrics.RecordMutationFallback()
		brains = FallbackBrains(parent.Brain)
		res.Fallback = true
	}

	for i, brain := range brains {
		sk := genome.ChallengerKey(parent.SortKey, AttemptNumber(p.RetryCount, i))
		c, err := Assemble(parent, brain, issue, sk)
		if err != nil {
			return nil, err
		}
		if err := m.deps.Pool.PutChallenger(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to write challenger %s: %w", sk, err)
		}
		res.ChallengerSKs = append(res.ChallengerSKs, sk)
	}
	m.deps.Logger.InfoContext(ctx, "challengers written", "challengers", res.ChallengerSKs, "fallback", res.Fallback)
	return res, nil
}

// ParseMutations reads exactly three brains from model output, given as a
// bare array or as {"mutations": [...]}.
func ParseMutations(out string) ([]*genome.Brain, error) {
	raw, err := pipeline.ExtractValue(out)
	if err != nil {
		return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: err}
	}
	var items []json.RawMessage
	if strings.HasPrefix(raw, "{") {
		var wrapped struct {
			Mutations []json.RawMessage `json:"mutations"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: err}
		}
		if wrapped.Mutations == nil {
			return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: fmt.Errorf("object has no mutations key")}
		}
		items = wrapped.Mutations
	} else if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: err}
	}
	if len(items) != Candidates {
		return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out,
			Cause: fmt.Errorf("got %d mutations, want %d", len(items), Candidates)}
	}

	brains := make([]*genome.Brain, 0, len(items))
	for i, item := range items {
		var b *genome.Brain
		if err := json.Unmarshal(item, &b); err != nil {
			return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: fmt.Errorf("mutation %d: %w", i, err)}
		}
		if b == nil {
			return nil, &genome.ParseError{Stage: pipeline.StageMutator, Raw: out, Cause: fmt.Errorf("mutation %d is null", i)}
		}
		brains = append(brains, b)
	}
	return brains, nil
}

// FallbackBrains derives three deterministic variants of b: a stricter, an
// empathetic and a concise one.
func FallbackBrains(b *genome.Brain) []*genome.Brain {
	variant := func(suffix string) *genome.Brain {
		c := b.Clone()
		if c == nil {
			c = &genome.Brain{}
		}
		if c.Persona == nil {
			c.Persona = &genome.Persona{}
		}
		tone := c.Persona.Tone
		if tone == "" {
			tone = genome.DefaultTone
		}
		c.Persona.Tone = tone + " " + suffix
		return c
	}

	stricter := variant("(Stricter)")
	stricter.OperationalGuidelines = append(stricter.OperationalGuidelines, "Strictly adhere to the provided policy.")

	empathetic := variant("(Empathetic)")
	empathetic.OperationalGuidelines = append(empathetic.OperationalGuidelines, "Ensure the user feels heard and understood.")

	concise := variant("(Concise)")
	concise.StyleGuide = append(concise.StyleGuide, "Keep responses under 2 sentences when possible.")

	return []*genome.Brain{stricter, empathetic, concise}
}

// Assemble builds challenger sk of parent around brain. Every section but
// the brain and economics is copied from the parent.
func Assemble(parent *genome.Version, brain *genome.Brain, issue pipeline.Issue, sk string) (*genome.Version, error) {
	hash, err := genome.ContentHash(brain)
	if err != nil {
		return nil, fmt.Errorf("failed to hash challenger brain: %w", err)
	}
	budget := DefaultTokenBudget
	if parent.Economics != nil && parent.Economics.TokenBudget > 0 {
		budget = parent.Economics.TokenBudget
	}
	name := parent.Metadata.Name
	if name == "" {
		name = "Agent"
	}

	return &genome.Version{
		Partition: parent.Partition,
		SortKey:   sk,
		Metadata: genome.Metadata{
			Name:            name + " (Candidate)",
			Description:     parent.Metadata.Description,
			Creator:         Creator,
			VersionHash:     hash,
			ParentHash:      parent.Metadata.VersionHash,
			DeploymentState: genome.StatePendingApproval,
			MutationReason:  issue.Reason,
		},
		Config:          parent.Config,
		Brain:           brain,
		Resources:       parent.Resources,
		Capabilities:    parent.Capabilities,
		EvolutionConfig: parent.EvolutionConfig,
		Economics: &genome.Economics{
			InputTokenCount:        genome.EstimateTokens(genome.BuildSystemPrompt(brain, parent.Resources, parent.Capabilities)),
			TokenBudget:            budget,
			EstimatedCostOfCalling: EstimatedCost,
		},
	}, nil
}

const systemPrompt = `You are a prompt-engineering MUTATOR agent.
- Generate alternative variants of an agent brain that fix the identified issue.
- Keep the variants concise and token-efficient without losing meaning.
- Only change the brain: persona, style_guide, objectives, operational_guidelines.

Return ONLY valid JSON with exactly 3 candidates, no markdown:
{"mutations": [ {brain1}, {brain2}, {brain3} ]}`

func userPrompt(brain *genome.Brain, issue pipeline.Issue, retry pipeline.RetryContext) (string, error) {
	body, err := json.MarshalIndent(brain, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode brain: %w", err)
	}
	var b strings.Builder
	b.WriteString("Generate 3 mutations of the following agent brain to fix this issue.\n\n")
	fmt.Fprintf(&b, "CRITIC ISSUE:\nRule: %s\nReason: %s\n\n", issue.Rule, issue.Reason)
	if retry.PreviousReason != "" {
		fmt.Fprintf(&b, "PREVIOUS ATTEMPT FAILED:\n%s\nTry a different approach than the previous candidates.\n\n", retry.PreviousReason)
	}
	fmt.Fprintf(&b, "ORIGINAL BRAIN:\n%s\n\nEnsure the output is valid JSON matching the requested structure.", body)
	return b.String(), nil
}
