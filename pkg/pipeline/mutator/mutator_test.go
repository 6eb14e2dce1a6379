package mutator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/darwin/internal/pipelinetest"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

var mutationRole = config.RoleConfig{ModelID: pipelinetest.MutateModel, MaxTokens: 4096}

const threeBrains = `Sure! {"mutations": [
 {"persona": {"role": "Concierge", "tone": "Discreet"}, "style_guide": [], "objectives": ["Help"], "operational_guidelines": ["Never reveal room numbers."]},
 {"persona": {"role": "Concierge", "tone": "Warm"}, "style_guide": [], "objectives": ["Help"], "operational_guidelines": ["Protect guest privacy."]},
 {"persona": {"role": "Concierge", "tone": "Firm"}, "style_guide": [], "objectives": ["Help"], "operational_guidelines": ["Decline third-party lookups."]}
]}`

func TestAttemptNumber(t *testing.T) {
	tests := []struct{ retry, i, want int }{
		{0, 0, 1}, {0, 2, 3}, {1, 0, 4}, {1, 2, 6}, {2, 1, 8},
	}
	for _, tt := range tests {
		if got := AttemptNumber(tt.retry, tt.i); got != tt.want {
			t.Errorf("AttemptNumber(%d, %d) = %d, want %d", tt.retry, tt.i, got, tt.want)
		}
	}
}

func TestParseMutations(t *testing.T) {
	brain := `{"persona":{"role":"r","tone":"t"},"operational_guidelines":[]}`
	tests := []struct {
		name    string
		out     string
		wantErr bool
	}{
		{"wrapped", threeBrains, false},
		{"bare list", "[" + brain + "," + brain + "," + brain + "]", false},
		{"two only", "[" + brain + "," + brain + "]", true},
		{"four", "[" + brain + "," + brain + "," + brain + "," + brain + "]", true},
		{"object without key", `{"brains": []}`, true},
		{"null entry", "[" + brain + ",null," + brain + "]", true},
		{"prose", "I cannot help with that.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brains, err := ParseMutations(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, genome.ErrParse) {
					t.Errorf("err = %v, want ErrParse", err)
				}
				return
			}
			if len(brains) != Candidates {
				t.Errorf("brains = %d", len(brains))
			}
		})
	}
}

func TestFallbackBrains(t *testing.T) {
	parent := pipelinetest.Genome().Brain
	got := FallbackBrains(parent)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Persona.Tone != "Professional (Stricter)" || last(got[0].OperationalGuidelines) != "Strictly adhere to the provided policy." {
		t.Errorf("stricter = %+v", got[0])
	}
	if got[1].Persona.Tone != "Professional (Empathetic)" || last(got[1].OperationalGuidelines) != "Ensure the user feels heard and understood." {
		t.Errorf("empathetic = %+v", got[1])
	}
	if got[2].Persona.Tone != "Professional (Concise)" || last(got[2].StyleGuide) != "Keep responses under 2 sentences when possible." {
		t.Errorf("concise = %+v", got[2])
	}
	if parent.Persona.Tone != "Professional" || len(parent.OperationalGuidelines) != 1 {
		t.Error("fallback modified the parent brain")
	}

	noPersona := FallbackBrains(&genome.Brain{})
	if noPersona[0].Persona == nil || noPersona[0].Persona.Tone != "Professional (Stricter)" {
		t.Errorf("persona not created: %+v", noPersona[0].Persona)
	}
}

func TestAssemble(t *testing.T) {
	parent := pipelinetest.Genome()
	brain := FallbackBrains(parent.Brain)[0]
	sk := genome.ChallengerKey(parent.SortKey, 1)

	c, err := Assemble(parent, brain, pipeline.Issue{Rule: "privacy", Reason: "leak"}, sk)
	if err != nil {
		t.Fatal(err)
	}
	hash, _ := genome.ContentHash(brain)
	md := c.Metadata
	if md.Name != "Concierge (Candidate)" || md.Creator != Creator || md.VersionHash != hash ||
		md.ParentHash != parent.Metadata.VersionHash || md.DeploymentState != genome.StatePendingApproval ||
		md.MutationReason != "leak" {
		t.Errorf("metadata = %+v", md)
	}
	if c.Config != parent.Config || c.Resources != parent.Resources || c.EvolutionConfig != parent.EvolutionConfig {
		t.Error("sections not copied from parent")
	}
	e := c.Economics
	if e.Likes != 0 || e.Dislikes != 0 || e.TokenBudget != 800 || e.EstimatedCostOfCalling != EstimatedCost {
		t.Errorf("economics = %+v", e)
	}
	want := genome.EstimateTokens(genome.BuildSystemPrompt(brain, parent.Resources, parent.Capabilities))
	if e.InputTokenCount != want {
		t.Errorf("input tokens = %d, want %d", e.InputTokenCount, want)
	}

	parent.Economics = nil
	c, _ = Assemble(parent, brain, pipeline.Issue{}, sk)
	if c.Economics.TokenBudget != DefaultTokenBudget {
		t.Errorf("default budget = %d", c.Economics.TokenBudget)
	}
}

func TestMutate(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.Gateway.Reply(pipelinetest.MutateModel, threeBrains)

	res, err := New(env.Deps(), mutationRole).Mutate(context.Background(), pipeline.Payload{
		PK: v.Partition, GenomeSK: v.SortKey, Issue: pipeline.Issue{Rule: "privacy", Reason: "leak"},
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if res.Fallback || len(res.ChallengerSKs) != 3 || res.ChallengerSKs[0] != v.SortKey+"#CHALLENGER#attempt-1" {
		t.Errorf("result = %+v", res)
	}
	req := env.Gateway.Requests(pipelinetest.MutateModel)[0]
	if req.Temperature != FirstRoundTemperature || req.MaxTokens != 4096 {
		t.Errorf("request = %+v", req)
	}

	stored, err := env.Pool.ListChallengers(context.Background(), v.Partition, v.SortKey)
	if err != nil || len(stored) != 3 {
		t.Fatalf("challengers = %d, %v", len(stored), err)
	}
	if stored[1].Brain.Persona.Tone != "Warm" || stored[1].Attempt != 2 {
		t.Errorf("challenger 2 = %+v", stored[1])
	}
	lineage, _ := env.Pool.Lineage(context.Background(), v.Partition)
	if err := lineage.Verify(); err != nil {
		t.Errorf("lineage: %v", err)
	}
}

func TestMutate_RetryRound(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.Gateway.Reply(pipelinetest.MutateModel, "not json")

	p := pipeline.Payload{PK: v.Partition, GenomeSK: v.SortKey, ChallengerSKs: []string{"a"}}.
		NextRound(1, "No challenger improved on the failure.")
	res, err := New(env.Deps(), mutationRole).Mutate(context.Background(), p)
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if !res.Fallback || res.ChallengerSKs[0] != v.SortKey+"#CHALLENGER#attempt-4" || res.ChallengerSKs[2] != v.SortKey+"#CHALLENGER#attempt-6" {
		t.Errorf("result = %+v", res)
	}
	req := env.Gateway.Requests(pipelinetest.MutateModel)[0]
	if req.Temperature != RetryTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "No challenger improved on the failure.") || !strings.Contains(prompt, pipeline.DefaultIssueReason) {
		t.Errorf("prompt missing retry context or default issue:\n%s", prompt)
	}
}

func TestMutate_Errors(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := pipelinetest.Genome()
	v.Brain = nil
	env.Seed(t, v)
	m := New(env.Deps(), mutationRole)

	if _, err := m.Mutate(context.Background(), pipeline.Payload{PK: v.Partition, GenomeSK: v.SortKey}); !errors.Is(err, genome.ErrValidation) {
		t.Errorf("missing brain: err = %v", err)
	}
	if _, err := m.Mutate(context.Background(), pipeline.Payload{PK: v.Partition, GenomeSK: "VERSION#2020-01-01T00:00:00.000000Z"}); !errors.Is(err, genome.ErrNotFound) {
		t.Errorf("missing genome: err = %v", err)
	}
}

func TestMutate_GatewayFailureFallsBack(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.Gateway.Fail(pipelinetest.MutateModel, &gateway.Error{Cause: errors.New("model unavailable")})
	ctx := context.Background()

	res, err := New(env.Deps(), mutationRole).Mutate(ctx, pipeline.Payload{PK: v.Partition, GenomeSK: v.SortKey})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if !res.Fallback || len(res.ChallengerSKs) != Candidates {
		t.Fatalf("result = %+v", res)
	}
	c, err := env.Pool.GetChallenger(ctx, v.Partition, res.ChallengerSKs[0])
	if err != nil {
		t.Fatal(err)
	}
	if c.Brain.Persona.Tone != "Professional (Stricter)" {
		t.Errorf("tone = %q", c.Brain.Persona.Tone)
	}
}

func TestMutate_CancelledContext(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.Gateway.Fail(pipelinetest.MutateModel, context.Canceled)

	if _, err := New(env.Deps(), mutationRole).Mutate(ctx, pipeline.Payload{PK: v.Partition, GenomeSK: v.SortKey}); err == nil {
		t.Error("cancelled mutation succeeded")
	}
}

func last(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
