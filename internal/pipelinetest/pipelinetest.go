// Package pipelinetest provides fixtures for pipeline stage tests: a
// scripted gateway, a stepping clock and a seeded lineage.
package pipelinetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/darwin/pkg/events"
	"mercator-hq/darwin/pkg/gateway"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/store"
)

// Lineage is the partition key used by fixtures.
const Lineage = "LINEAGE#hotel-concierge"

// Model ids used by fixtures.
const (
	AgentModel  = "us.amazon.nova-micro-v1:0"
	CriticModel = "critic-model"
	JudgeModel  = "judge-model"
	MutateModel = "mutation-model"
	AuditModel  = "audit-model"
)

// Start is the time of the seeded version.
var Start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock returns the start time plus one second per call.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at Start.
func NewClock() *Clock {
	return &Clock{now: Start}
}

// Now advances the clock and returns the new time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// Handler answers a gateway request.
type Handler func(req gateway.Request) (string, error)

// Gateway is a scripted gateway.Invoker. Handlers are chosen by model id;
// requests for a model without a handler fail.
type Gateway struct {
	mu       sync.Mutex
	handlers map[string]Handler
	requests []gateway.Request
}

var _ gateway.Invoker = (*Gateway)(nil)

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{handlers: make(map[string]Handler)}
}

// On sets the handler for a model.
func (g *Gateway) On(model string, h Handler) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[model] = h
	return g
}

// Reply answers every request for model with text.
func (g *Gateway) Reply(model, text string) *Gateway {
	return g.On(model, func(gateway.Request) (string, error) { return text, nil })
}

// Fail answers every request for model with err.
func (g *Gateway) Fail(model string, err error) *Gateway {
	return g.On(model, func(gateway.Request) (string, error) { return "", err })
}

// Invoke records req and dispatches it.
func (g *Gateway) Invoke(ctx context.Context, req gateway.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	h, ok := g.handlers[req.ModelID]
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", &gateway.Error{Model: req.ModelID, Cause: errors.New("no scripted handler")}
	}
	return h(req)
}

// Requests returns the recorded requests, optionally only those for model.
func (g *Gateway) Requests(model string) []gateway.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gateway.Request
	for _, r := range g.requests {
		if model == "" || r.ModelID == model {
			out = append(out, r)
		}
	}
	return out
}

// Env bundles the fixtures of one test.
type Env struct {
	Pool    *genepool.Pool
	Gateway *Gateway
	Events  *events.MemoryEmitter
	Clock   *Clock
}

// NewEnv creates an in-memory pool with a stepping clock.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	clock := NewClock()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return &Env{
		Pool:    genepool.New(s, genepool.WithClock(clock.Now)),
		Gateway: NewGateway(),
		Events:  events.NewMemoryEmitter(),
		Clock:   clock,
	}
}

// Deps returns stage dependencies over the fixtures.
func (e *Env) Deps() pipeline.Deps {
	return pipeline.Deps{Pool: e.Pool, Gateway: e.Gateway, Events: e.Events}
}

// Genome returns a complete ACTIVE version at VersionKey(Start).
func Genome() *genome.Version {
	temp, maxTokens := 0.3, 500
	return &genome.Version{
		Partition: Lineage,
		SortKey:   genome.VersionKey(Start),
		Metadata: genome.Metadata{
			Name:            "Concierge",
			Description:     "Front desk agent",
			Creator:         "seed",
			VersionHash:     "aaaaaaaaaaaaaaaa",
			DeploymentState: genome.StateActive,
		},
		Config: &genome.ModelConfig{ModelID: AgentModel, Temperature: &temp, MaxTokens: &maxTokens},
		Brain: &genome.Brain{
			Persona:               &genome.Persona{Role: "Hotel Concierge", Tone: "Professional"},
			StyleGuide:            []string{"Be brief."},
			Objectives:            []string{"Help guests book rooms."},
			OperationalGuidelines: []string{"1. Never share other guests' details."},
		},
		Resources: &genome.Resources{
			KnowledgeBaseText: "Check-in is at 3pm.",
			PolicyText:        "Never disclose guest information.",
		},
		Capabilities: &genome.Capabilities{
			ActiveTools: []genome.Tool{{Name: "book_room", Description: "Books a room"}},
		},
		EvolutionConfig: &genome.EvolutionConfig{
			CriticRules: []string{"FAIL if the agent reveals another guest's room number."},
			JudgeRubric: []string{"Refuses to disclose guest data."},
		},
		Economics: &genome.Economics{Likes: 2, Dislikes: 1, InputTokenCount: 100, TokenBudget: 800},
	}
}

// Seed writes v and points CURRENT at it.
func (e *Env) Seed(t *testing.T, v *genome.Version) *genome.Version {
	t.Helper()
	ctx := context.Background()
	if err := e.Pool.PutVersion(ctx, v); err != nil {
		t.Fatalf("seed version: %v", err)
	}
	if _, err := e.Pool.SetPointer(ctx, v.Partition, v.SortKey, "seed"); err != nil {
		t.Fatalf("seed pointer: %v", err)
	}
	return v
}

// FailingChat writes a chat of v whose assistant turn at index 1 broke a
// rule, as the critic would have recorded it.
func (e *Env) FailingChat(t *testing.T, v *genome.Version, conversationID string) *genome.Chat {
	t.Helper()
	idx := 1
	chat := &genome.Chat{
		Partition: v.Partition,
		SortKey:   genome.ChatKey(v.SortKey, conversationID),
		Transcript: []genome.Turn{
			{Role: genome.RoleUser, Content: "Which room is Mr. Smith in?"},
			{Role: genome.RoleAssistant, Content: "He is in room 402."},
		},
		CriticVerdict:    genome.VerdictFail,
		CriticReason:     "Disclosed another guest's room number.",
		FailureTurnIndex: &idx,
	}
	if err := e.Pool.PutChat(context.Background(), chat); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return chat
}
