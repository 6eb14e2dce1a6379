// Package serving answers user messages with the active genome of a
// lineage and records the conversation for the critic.
package serving

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

// Request is one user message.
type Request struct {
	PK             string `json:"pk"`
	ConversationID string `json:"chat_id"`
	Message        string `json:"message"`
}

// Response is the agent's reply.
type Response struct {
	Reply    string         `json:"reply"`
	ChatSK   string         `json:"chat_sk"`
	GenomeSK string         `json:"genome_sk"`
	ModelID  string         `json:"model_id"`
	Verdict  genome.Verdict `json:"critic_verdict,omitempty"`
}

// Service is the serving path.
type Service struct {
	deps pipeline.Deps
}

// New creates a serving path.
func New(deps pipeline.Deps) *Service {
	return &Service{deps: deps.WithDefaults(pipeline.StageServing)}
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.PK) == "":
		return genome.NewValidationError("pk", "lineage id is required")
	case strings.TrimSpace(r.ConversationID) == "":
		return genome.NewValidationError("chat_id", "conversation id is required")
	case strings.Contains(r.ConversationID, "#"):
		return genome.NewValidationError("chat_id", "conversation id must not contain '#'")
	case strings.TrimSpace(r.Message) == "":
		return genome.NewValidationError("message", "message is required")
	}
	return nil
}

// Respond resolves CURRENT, answers req with the active genome and appends
// the exchange to the conversation. ChatResponseGenerated is emitted unless
// the critic last marked the conversation FAIL.
func (s *Service) Respond(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return nil, err
	}

	active, err := s.deps.Pool.ResolveActive(ctx, req.PK)
	if err != nil {
		return nil, err
	}
	if err := genome.ValidateServable(active); err != nil {
		return nil, err
	}
	chatSK := genome.ChatKey(active.SortKey, req.ConversationID)

	ctx, span := s.deps.Span(ctx, pipeline.StageServing, req.PK, chatSK, 0)
	defer span.End()
	outcome := "answered"
	defer func() { s.deps.Finish(span, pipeline.StageServing, outcome, start, err) }()

	now := genome.FormatTimestamp(s.deps.Pool.Now())
	chat, err := s.deps.Pool.GetChat(ctx, req.PK, chatSK)
	switch {
	case errors.Is(err, genome.ErrNotFound):
		chat = &genome.Chat{Partition: req.PK, SortKey: chatSK, CreatedAt: now}
	case err != nil:
		return nil, err
	}

	userTurn := genome.Turn{Role: genome.RoleUser, Content: req.Message}
	messages := make([]genome.Turn, 0, len(chat.Transcript)+1)
	messages = append(messages, chat.Transcript...)
	messages = append(messages, userTurn)

	reply, err := s.deps.Gateway.Invoke(ctx, gateway.Request{
		ModelID:     active.Config.ModelID,
		System:      active.SystemPrompt(),
		Messages:    messages,
		Temperature: *active.Config.Temperature,
		MaxTokens:   *active.Config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	chat.Transcript = append(messages, genome.Turn{Role: genome.RoleAssistant, Content: reply})
	chat.UpdatedAt = now
	if err := s.deps.Pool.PutChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to persist conversation: %w", err)
	}

	if chat.CriticVerdict == "" || chat.CriticVerdict == genome.VerdictPass {
		events.Fire(ctx, s.deps.Events, s.deps.Logger, events.ChatResponseGenerated, events.SourceServing,
			events.ChatResponseDetail{PK: req.PK, ChatSK: chatSK})
	} else {
		outcome = "suppressed"
		s.deps.Logger.InfoContext(ctx, "conversation is failing its rules, evaluation event suppressed",
			"verdict", chat.CriticVerdict)
	}

	s.deps.Logger.DebugContext(ctx, "reply generated",
		"model", active.Config.ModelID, "turns", len(chat.Transcript))
	return &Response{
		Reply:    reply,
		ChatSK:   chatSK,
		GenomeSK: active.SortKey,
		ModelID:  active.Config.ModelID,
		Verdict:  chat.CriticVerdict,
	}, nil
}
