package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/darwin/internal/pipelinetest"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/escalation"
	"mercator-hq/darwin/pkg/pipeline/mutator"
)

var judgeRole = config.RoleConfig{ModelID: pipelinetest.JudgeModel, MaxTokens: 800}

// fixture seeds a genome, a failing chat and three challengers whose
// simulated replies are "reply-<attempt>".
type fixture struct {
	env     *pipelinetest.Env
	payload pipeline.Payload
}

func newFixture(t *testing.T, retry int) *fixture {
	t.Helper()
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	chat := env.FailingChat(t, v, "c1")

	var sks []string
	for i, b := range mutator.FallbackBrains(v.Brain) {
		sk := genome.ChallengerKey(v.SortKey, mutator.AttemptNumber(retry, i))
		c, err := mutator.Assemble(v, b, pipeline.Issue{Reason: "leak"}, sk)
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Pool.PutChallenger(context.Background(), c); err != nil {
			t.Fatal(err)
		}
		sks = append(sks, sk)
	}
	env.Gateway.On(pipelinetest.AgentModel, func(req gateway.Request) (string, error) {
		switch {
		case strings.Contains(req.System, "(Stricter)"):
			return "reply-stricter", nil
		case strings.Contains(req.System, "(Empathetic)"):
			return "reply-empathetic", nil
		default:
			return "reply-concise", nil
		}
	})
	return &fixture{
		env: env,
		payload: pipeline.Payload{
			PK: v.Partition, ChatSK: chat.SortKey, GenomeSK: v.SortKey,
			ChallengerSKs: sks, RetryCount: retry,
		},
	}
}

// judgeReplies scripts the comparator and the compliance check.
func (f *fixture) judgeReplies(comparator, compliance string) {
	f.env.Gateway.On(pipelinetest.JudgeModel, func(req gateway.Request) (string, error) {
		if strings.Contains(req.Messages[0].Content, "COMPLIANCE") {
			return compliance, nil
		}
		return comparator, nil
	})
}

func (f *fixture) judge(maxRetries int) *Judge {
	deps := f.env.Deps()
	return New(deps, judgeRole, &escalation.Policy{Deps: deps, MaxRetries: maxRetries, NewID: func() string { return "t1" }})
}

func TestArbitrate_Winner(t *testing.T) {
	f := newFixture(t, 0)
	f.judgeReplies(`{"winner_id": 1, "reason": "declines politely"}`, `{"passed": true, "reason": "Follows policy"}`)

	res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	want := Result{
		Improved:             true,
		SelectedChallengerSK: f.payload.ChallengerSKs[1],
		ImprovedResponse:     "reply-empathetic",
		Reason:               "Follows policy",
	}
	if *res != want {
		t.Errorf("result = %+v, want %+v", *res, want)
	}

	sims := f.env.Gateway.Requests(pipelinetest.AgentModel)
	if len(sims) != 3 {
		t.Fatalf("simulations = %d", len(sims))
	}
	for _, s := range sims {
		if len(s.Messages) != 1 || s.Messages[0].Role != genome.RoleUser || s.Temperature != 0 || s.MaxTokens != SimulationMaxTokens {
			t.Errorf("simulation request = %+v", s)
		}
		if !strings.Contains(s.System, "Check-in is at 3pm.") {
			t.Error("simulation lost the parent's resources")
		}
	}
	comparator := f.env.Gateway.Requests(pipelinetest.JudgeModel)[0].Messages[0].Content
	if !strings.Contains(comparator, "He is in room 402.") || !strings.Contains(comparator, "Disclosed another guest's room number.") {
		t.Errorf("comparator prompt:\n%s", comparator)
	}
}

func TestArbitrate_NoWinner(t *testing.T) {
	tests := []struct {
		name       string
		comparator string
	}{
		{"declined", `{"winner_id": -1, "reason": "none"}`},
		{"out of range", `{"winner_id": 7}`},
		{"unparsable", "the second one"},
		{"string id out of range", `{"winner_id": "3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.judgeReplies(tt.comparator, `{"passed": true}`)

			res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
			if err != nil {
				t.Fatalf("Arbitrate: %v", err)
			}
			if res.Improved || res.Terminal || res.Reason != NoImprovement || res.RetryCount != 0 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestArbitrate_ComplianceFailureEscalates(t *testing.T) {
	f := newFixture(t, 1)
	f.judgeReplies(`{"winner_id": 0}`, `{"passed": false, "reason": "Hallucinated a refund"}`)

	res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if !res.Terminal || res.Reason != "Final Failure. Ticket Created: t1" || res.FailedChallengerSK != f.payload.ChallengerSKs[0] {
		t.Errorf("result = %+v", res)
	}

	tickets, _ := f.env.Pool.ListTickets(context.Background(), f.payload.PK, genepool.TicketFilter{Status: genome.TicketOpen})
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d", len(tickets))
	}
	tk := tickets[0]
	if tk.AIAnalysis != CompliancePrefix+"Hallucinated a refund" || tk.Feedback != TicketFeedback || tk.ChallengerSK != f.payload.ChallengerSKs[0] {
		t.Errorf("ticket = %+v", tk)
	}
}

func TestArbitrate_ComplianceErrorFails(t *testing.T) {
	f := newFixture(t, 0)
	f.env.Gateway.On(pipelinetest.JudgeModel, func(req gateway.Request) (string, error) {
		if strings.Contains(req.Messages[0].Content, "COMPLIANCE") {
			return "", &gateway.Error{Cause: errors.New("down")}
		}
		return `{"winner_id": 2}`, nil
	})

	res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if res.Improved || !strings.HasPrefix(res.Reason, CompliancePrefix+"Judge Error: ") {
		t.Errorf("result = %+v", res)
	}
}

func TestArbitrate_SimulationFailureExcluded(t *testing.T) {
	f := newFixture(t, 0)
	f.env.Gateway.On(pipelinetest.AgentModel, func(req gateway.Request) (string, error) {
		if strings.Contains(req.System, "(Stricter)") {
			return "", &gateway.Error{Throttled: true, Cause: errors.New("throttled")}
		}
		return "fine", nil
	})
	f.judgeReplies(`{"winner_id": 0}`, `{"passed": true, "reason": "ok"}`)

	res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if res.SelectedChallengerSK != f.payload.ChallengerSKs[1] {
		t.Errorf("winner = %q, want the first surviving candidate", res.SelectedChallengerSK)
	}
}

func TestArbitrate_ChallengersOfRound(t *testing.T) {
	f := newFixture(t, 1)
	f.payload.ChallengerSKs = nil
	f.judgeReplies(`{"winner_id": 2}`, `{"passed": true, "reason": "ok"}`)

	res, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if !strings.HasSuffix(res.SelectedChallengerSK, "#CHALLENGER#attempt-6") {
		t.Errorf("winner = %q", res.SelectedChallengerSK)
	}
}

func TestArbitrate_TurnIndexOutOfRange(t *testing.T) {
	f := newFixture(t, 0)
	chat, _ := f.env.Pool.GetChat(context.Background(), f.payload.PK, f.payload.ChatSK)
	idx := 5
	chat.FailureTurnIndex = &idx
	_ = f.env.Pool.PutChat(context.Background(), chat)

	_, err := f.judge(1).Arbitrate(context.Background(), f.payload)
	if !errors.Is(err, genome.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
