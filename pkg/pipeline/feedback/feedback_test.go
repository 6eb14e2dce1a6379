package feedback

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
)

const feedbackModel = "feedback-model"

var feedbackRole = config.RoleConfig{ModelID: feedbackModel, MaxTokens: 1000}

func newService(env *pipelinetest.Env) *Service {
	s := New(env.Deps(), feedbackRole)
	s.newID = func() string { return "u1" }
	return s
}

func TestSubmit_Like(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())

	res, err := newService(env).Submit(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Type: Like})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Likes != 3 || res.Dislikes != 1 || res.TicketSK != "" {
		t.Errorf("result = %+v", res)
	}
	stored, _ := env.Pool.GetVersion(context.Background(), v.Partition, v.SortKey)
	if stored.Economics.Likes != 3 || stored.Economics.InputTokenCount != 100 {
		t.Errorf("economics = %+v", stored.Economics)
	}
	if len(env.Gateway.Requests("")) != 0 {
		t.Error("like must not call the model")
	}
}

func TestSubmit_Dislike(t *testing.T) {
	tests := []struct {
		name         string
		comment      string
		reply        string
		fail         bool
		wantAnalysis string
		wantFeedback string
	}{
		{"analysed", "Too chatty", `{"insight":"rambled"}`, false, `{"insight":"rambled"}`, "Too chatty"},
		{"not possible", "", "NOT_POSSIBLE", false, NoFix, DefaultComment},
		{"model down", "bad", "", true, NoFix, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := pipelinetest.NewEnv(t)
			v := env.Seed(t, pipelinetest.Genome())
			env.FailingChat(t, v, "c1")
			if tt.fail {
				env.Gateway.Fail(feedbackModel, &gateway.Error{Cause: errors.New("down")})
			} else {
				env.Gateway.Reply(feedbackModel, tt.reply)
			}

			res, err := newService(env).Submit(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Type: Dislike, Comment: tt.comment})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if res.Dislikes != 2 || res.TicketSK != v.SortKey+"#TICKET#u1" {
				t.Errorf("result = %+v", res)
			}
			tickets, _ := env.Pool.ListTickets(context.Background(), v.Partition, genepool.TicketFilter{Type: genome.TicketUser})
			if len(tickets) != 1 {
				t.Fatalf("tickets = %d", len(tickets))
			}
			tk := tickets[0]
			if tk.AIAnalysis != tt.wantAnalysis || tk.Feedback != tt.wantFeedback ||
				tk.ChallengerSK != genome.NoChallenger || tk.ChatSK != v.SortKey+"#CHAT#c1" || tk.Status != genome.TicketOpen {
				t.Errorf("ticket = %+v", tk)
			}
		})
	}
}

func TestSubmit_PromptCarriesTranscript(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.FailingChat(t, v, "c1")
	env.Gateway.Reply(feedbackModel, "ok")

	if _, err := newService(env).Submit(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Type: Dislike}); err != nil {
		t.Fatal(err)
	}
	req := env.Gateway.Requests(feedbackModel)[0]
	if !strings.Contains(req.Messages[0].Content, "He is in room 402.") || req.Temperature != 0 {
		t.Errorf("request = %+v", req)
	}
}

func TestSubmit_Errors(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	s := newService(env)
	if _, err := s.Submit(context.Background(), Request{PK: "p", ConversationID: "c", Type: "meh"}); !errors.Is(err, genome.ErrValidation) {
		t.Errorf("bad type: err = %v", err)
	}
	if _, err := s.Submit(context.Background(), Request{PK: "p", ConversationID: "c", Type: Like}); !errors.Is(err, genome.ErrNotFound) {
		t.Errorf("no pointer: err = %v", err)
	}
}
