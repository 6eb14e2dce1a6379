package serving

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/darwin/internal/pipelinetest"
	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genome"
)

func TestRespond_NewConversation(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.Gateway.Reply(pipelinetest.AgentModel, "Check-in is at 3pm.")

	resp, err := New(env.Deps()).Respond(context.Background(), Request{
		PK: v.Partition, ConversationID: "c1", Message: "When is check-in?",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Reply != "Check-in is at 3pm." || resp.GenomeSK != v.SortKey {
		t.Errorf("response = %+v", resp)
	}
	if resp.ChatSK != v.SortKey+"#CHAT#c1" {
		t.Errorf("chat sk = %q", resp.ChatSK)
	}

	reqs := env.Gateway.Requests(pipelinetest.AgentModel)
	if len(reqs) != 1 {
		t.Fatalf("gateway calls = %d", len(reqs))
	}
	if reqs[0].System != v.SystemPrompt() || reqs[0].Temperature != 0.3 || reqs[0].MaxTokens != 500 {
		t.Errorf("request = %+v", reqs[0])
	}

	chat, err := env.Pool.GetChat(context.Background(), v.Partition, resp.ChatSK)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if len(chat.Transcript) != 2 || chat.Transcript[1].Role != genome.RoleAssistant {
		t.Errorf("transcript = %+v", chat.Transcript)
	}
	if got := env.Events.Named(events.ChatResponseGenerated); len(got) != 1 {
		t.Errorf("events = %d, want 1", len(got))
	}
}

func TestRespond_ContinuesTranscript(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := env.Seed(t, pipelinetest.Genome())
	env.Gateway.Reply(pipelinetest.AgentModel, "ok")
	svc := New(env.Deps())

	for _, msg := range []string{"first", "second"} {
		if _, err := svc.Respond(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Message: msg}); err != nil {
			t.Fatalf("Respond(%s): %v", msg, err)
		}
	}
	reqs := env.Gateway.Requests(pipelinetest.AgentModel)
	if len(reqs[1].Messages) != 3 || reqs[1].Messages[2].Content != "second" {
		t.Errorf("second request messages = %+v", reqs[1].Messages)
	}
}

func TestRespond_VerdictGatesEvent(t *testing.T) {
	tests := []struct {
		verdict   genome.Verdict
		wantEvent bool
	}{
		{"", true},
		{genome.VerdictPass, true},
		{genome.VerdictFail, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			env := pipelinetest.NewEnv(t)
			v := env.Seed(t, pipelinetest.Genome())
			env.Gateway.Reply(pipelinetest.AgentModel, "ok")
			idx := 1
			prior := &genome.Chat{
				Partition:        v.Partition,
				SortKey:          genome.ChatKey(v.SortKey, "c1"),
				Transcript:       []genome.Turn{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
				CriticVerdict:    tt.verdict,
				CriticReason:     "reason",
				FailureTurnIndex: &idx,
			}
			if err := env.Pool.PutChat(context.Background(), prior); err != nil {
				t.Fatal(err)
			}

			if _, err := New(env.Deps()).Respond(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Message: "again"}); err != nil {
				t.Fatalf("Respond: %v", err)
			}
			if got := len(env.Events.Named(events.ChatResponseGenerated)) == 1; got != tt.wantEvent {
				t.Errorf("event emitted = %v, want %v", got, tt.wantEvent)
			}
			chat, _ := env.Pool.GetChat(context.Background(), v.Partition, prior.SortKey)
			if chat.CriticVerdict != tt.verdict || chat.CriticReason != "reason" || len(chat.Transcript) != 4 {
				t.Errorf("critic fields disturbed: %+v", chat)
			}
		})
	}
}

func TestRespond_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(env *pipelinetest.Env)
		req     Request
		wantErr error
	}{
		{
			name:    "missing message",
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "c1"},
			wantErr: genome.ErrValidation,
		},
		{
			name:    "conversation id with separator",
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "a#b", Message: "hi"},
			wantErr: genome.ErrValidation,
		},
		{
			name:    "no pointer",
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "c1", Message: "hi"},
			wantErr: genome.ErrNotFound,
		},
		{
			name: "dangling pointer",
			setup: func(env *pipelinetest.Env) {
				_, _ = env.Pool.SetPointer(context.Background(), pipelinetest.Lineage, "VERSION#2020-01-01T00:00:00.000000Z", "test")
			},
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "c1", Message: "hi"},
			wantErr: genome.ErrNotFound,
		},
		{
			name: "missing config",
			setup: func(env *pipelinetest.Env) {
				v := pipelinetest.Genome()
				v.Config.Temperature = nil
				_ = env.Pool.PutVersion(context.Background(), v)
				_, _ = env.Pool.SetPointer(context.Background(), v.Partition, v.SortKey, "test")
			},
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "c1", Message: "hi"},
			wantErr: genome.ErrValidation,
		},
		{
			name: "gateway failure",
			setup: func(env *pipelinetest.Env) {
				v := pipelinetest.Genome()
				_ = env.Pool.PutVersion(context.Background(), v)
				_, _ = env.Pool.SetPointer(context.Background(), v.Partition, v.SortKey, "test")
				env.Gateway.Fail(pipelinetest.AgentModel, &gateway.Error{Throttled: true, Cause: errors.New("slow down")})
			},
			req:     Request{PK: pipelinetest.Lineage, ConversationID: "c1", Message: "hi"},
			wantErr: genome.ErrThrottled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := pipelinetest.NewEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			_, err := New(env.Deps()).Respond(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(env.Events.Events()) != 0 {
				t.Error("no event expected on failure")
			}
		})
	}
}

func TestRespond_SystemPromptOmitsEmptySections(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	v := pipelinetest.Genome()
	v.Brain.StyleGuide = nil
	v.Capabilities = nil
	env.Seed(t, v)
	env.Gateway.Reply(pipelinetest.AgentModel, "ok")

	if _, err := New(env.Deps()).Respond(context.Background(), Request{PK: v.Partition, ConversationID: "c1", Message: "hi"}); err != nil {
		t.Fatal(err)
	}
	system := env.Gateway.Requests("")[0].System
	if strings.Contains(system, "Be brief.") || strings.Contains(system, "book_room") {
		t.Errorf("system prompt kept empty sections:\n%s", system)
	}
}
