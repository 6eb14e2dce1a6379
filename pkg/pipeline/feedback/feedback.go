// Package feedback records user likes and dislikes on the active genome and
// files a USER ticket with an analysis for every dislike.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

// Kind is the type of feedback.
type Kind string

const (
	Like    Kind = "like"
	Dislike Kind = "dislike"
)

// Analysis placeholders.
const (
	NoFix          = "No actionable fix identified"
	notPossible    = "NOT_POSSIBLE"
	DefaultComment = "User disliked response"
)

// Request is one piece of user feedback on a conversation.
type Request struct {
	PK             string `json:"pk"`
	ConversationID string `json:"chat_id"`
	Type           Kind   `json:"type"`
	Comment        string `json:"comment,omitempty"`
}

// Result reports the updated counters and the ticket filed, if any.
type Result struct {
	GenomeSK string `json:"genome_sk"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	TicketSK string `json:"ticket_sk,omitempty"`
}

// Service is the feedback stage.
type Service struct {
	deps  pipeline.Deps
	role  config.RoleConfig
	newID func() string
}

// New creates a feedback service that analyses dislikes with role.
func New(deps pipeline.Deps, role config.RoleConfig) *Service {
	return &Service{deps: deps.WithDefaults(pipeline.StageFeedback), role: role, newID: uuid.NewString}
}

// Submit applies req to the active genome of req.PK.
func (s *Service) Submit(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	if req.PK == "" || req.ConversationID == "" {
		return nil, genome.NewValidationError("chat_id", "pk and chat_id are required")
	}
	if req.Type != Like && req.Type != Dislike {
		return nil, genome.NewValidationError("type", fmt.Sprintf("feedback type must be like or dislike, got %q", req.Type))
	}

	ptr, err := s.deps.Pool.GetPointer(ctx, req.PK)
	if err != nil {
		return nil, err
	}
	chatSK := genome.ChatKey(ptr.ActiveVersionSK, req.ConversationID)
	ctx, span := s.deps.Span(ctx, pipeline.StageFeedback, req.PK, chatSK, 0)
	defer span.End()
	defer func() { s.deps.Finish(span, pipeline.StageFeedback, string(req.Type), start, err) }()

	v, err := s.deps.Pool.UpdateEconomics(ctx, req.PK, ptr.ActiveVersionSK, func(e *genome.Economics) {
		if req.Type == Like {
			e.Likes++
		} else {
			e.Dislikes++
		}
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordFeedback(string(req.Type))
	res = &Result{GenomeSK: v.SortKey, Likes: v.Economics.Likes, Dislikes: v.Economics.Dislikes}
	if req.Type == Like {
		return res, nil
	}

	analysis := s.analyse(ctx, req, v, chatSK)
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		comment = DefaultComment
	}
	id := s.newID()
	t := &genome.Ticket{
		Partition:    req.PK,
		SortKey:      genome.TicketKey(v.SortKey, id),
		ID:           id,
		Status:       genome.TicketOpen,
		Type:         genome.TicketUser,
		ChatSK:       chatSK,
		ChallengerSK: genome.NoChallenger,
		Feedback:     comment,
		AIAnalysis:   analysis,
		CreatedAt:    genome.FormatTimestamp(s.deps.Pool.Now()),
	}
	if err := s.deps.Pool.PutTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to file feedback ticket: %w", err)
	}
	s.deps.Metrics.RecordTicket(string(genome.TicketUser))
	s.deps.Logger.InfoContext(ctx, "user ticket filed", "ticket_sk", t.SortKey)
	res.TicketSK = t.SortKey
	return res, nil
}

// analyse asks the feedback role what went wrong. Failures yield NoFix.
func (s *Service) analyse(ctx context.Context, req Request, v *genome.Version, chatSK string) string {
	var transcript string
	if chat, err := s.deps.Pool.GetChat(ctx, req.PK, chatSK); err == nil {
		transcript = pipeline.FormatTranscript(chat.Transcript)
	}
	brain, err := json.MarshalIndent(v.Brain, "", "  ")
	if err != nil {
		return NoFix
	}
	comment := req.Comment
	if strings.TrimSpace(comment) == "" {
		comment = "No comment provided"
	}
	prompt := fmt.Sprintf("Chat Transcript:\n%s\n\nGenome Brain Section:\n%s\n\nUser Comment:\n%s\n\nAnalyze the dissatisfaction and suggest a fix.",
		transcript, brain, comment)

	out, err := s.deps.Ask(ctx, s.role, analystPrompt, prompt, 0)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "feedback analysis failed", "error", err)
		return NoFix
	}
	out = strings.TrimSpace(out)
	if out == "" || out == notPossible {
		return NoFix
	}
	return out
}

const analystPrompt = `You are a senior AI behavior analyst. You analyze negative user feedback about an AI conversation to improve the agent's long-term behavior.

You get the transcript, the agent's brain (goals, style and constraints) and the user's comment.
1. Diagnose the precise cause of dissatisfaction from concrete signals in the transcript and the brain.
2. Decide whether the agent had enough context to make a strong recommendation.
3. Propose one or two specific behavior changes that align with the brain.

Do not invent domain details that the transcript and brain do not show. If no fix is possible, output exactly NOT_POSSIBLE.

Otherwise output strictly valid JSON:
{
  "insight": "<what went wrong, one sentence>",
  "recommended_behavior": "<how the agent should behave in the future>",
  "improved_response_example": "<how the agent should have answered>"
}`
