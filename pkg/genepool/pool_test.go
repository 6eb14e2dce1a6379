package genepool

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/store"
)

const lineage = "hotel-concierge"

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	return New(store.NewMemoryStore(), WithClock(func() time.Time { return fixedNow }))
}

func testVersion(sk string) *genome.Version {
	temp, maxTokens := 0.2, 400
	return &genome.Version{
		Partition: lineage,
		SortKey:   sk,
		Metadata:  genome.Metadata{Name: "v", VersionHash: "h-" + sk, DeploymentState: genome.StateActive},
		Config:    &genome.ModelConfig{ModelID: "m", Temperature: &temp, MaxTokens: &maxTokens},
		Brain:     &genome.Brain{Persona: &genome.Persona{Role: "Concierge"}, OperationalGuidelines: []string{}},
		Resources: &genome.Resources{PolicyText: "p"},
	}
}

func TestResolveActive(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	v1 := genome.VersionKey(fixedNow)

	if _, err := p.ResolveActive(ctx, lineage); !errors.Is(err, genome.ErrNotFound) {
		t.Fatalf("missing pointer: expected ErrNotFound, got %v", err)
	}

	if _, err := p.SetPointer(ctx, lineage, v1, "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ResolveActive(ctx, lineage); !errors.Is(err, genome.ErrNotFound) {
		t.Fatalf("dangling pointer: expected ErrNotFound, got %v", err)
	}

	if err := p.PutVersion(ctx, testVersion(v1)); err != nil {
		t.Fatal(err)
	}
	got, err := p.ResolveActive(ctx, lineage)
	if err != nil {
		t.Fatalf("ResolveActive() error: %v", err)
	}
	if got.SortKey != v1 || got.EntityType != genome.EntityGenome {
		t.Errorf("resolved %s (%s)", got.SortKey, got.EntityType)
	}
	if *got.Config.Temperature != 0.2 {
		t.Errorf("Temperature = %v", *got.Config.Temperature)
	}

	ptr, err := p.GetPointer(ctx, lineage)
	if err != nil {
		t.Fatal(err)
	}
	if ptr.LastUpdated != genome.FormatTimestamp(fixedNow) || ptr.UpdatedBy != "test" {
		t.Errorf("pointer = %+v", ptr)
	}
}

func TestPutVersion_RejectsWrongKey(t *testing.T) {
	p := newTestPool(t)
	v := testVersion(genome.ChatKey(genome.VersionKey(fixedNow), "c"))
	if err := p.PutVersion(context.Background(), v); !errors.Is(err, genome.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestChallengers(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	v1 := genome.VersionKey(fixedNow)
	if err := p.PutVersion(ctx, testVersion(v1)); err != nil {
		t.Fatal(err)
	}

	for _, attempt := range []int{3, 1, 2} {
		c := testVersion(genome.ChallengerKey(v1, attempt))
		c.Metadata.DeploymentState = genome.StatePendingApproval
		c.Metadata.ParentHash = "h-" + v1
		if err := p.PutChallenger(ctx, c); err != nil {
			t.Fatalf("PutChallenger(%d): %v", attempt, err)
		}
	}

	list, err := p.ListChallengers(ctx, lineage, v1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("ListChallengers() returned %d, want 3", len(list))
	}
	for i, c := range list {
		if c.Attempt != i+1 {
			t.Errorf("challenger %d has attempt %d", i, c.Attempt)
		}
		if c.EntityType != genome.EntityChallenger {
			t.Errorf("EntityType = %q", c.EntityType)
		}
	}

	versions, err := p.ListVersions(ctx, lineage)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("ListVersions() returned %d, want 1", len(versions))
	}

	l, err := p.Lineage(ctx, lineage)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 4 {
		t.Errorf("lineage has %d nodes, want 4", l.Len())
	}
	if err := l.Verify(); err != nil {
		t.Errorf("Verify() error: %v", err)
	}

	if _, err := p.GetChallenger(ctx, lineage, genome.ChallengerKey(v1, 9)); !errors.Is(err, genome.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChats(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	sk := genome.ChatKey(genome.VersionKey(fixedNow), "conv-1")

	if _, err := p.GetChat(ctx, lineage, sk); !errors.Is(err, genome.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	idx := 1
	chat := &genome.Chat{
		Partition:        lineage,
		SortKey:          sk,
		Transcript:       []genome.Turn{{Role: genome.RoleUser, Content: "hi"}, {Role: genome.RoleAssistant, Content: "hello"}},
		CriticVerdict:    genome.VerdictFail,
		FailureTurnIndex: &idx,
	}
	if err := p.PutChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	got, err := p.GetChat(ctx, lineage, sk)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Transcript) != 2 || got.CriticVerdict != genome.VerdictFail || *got.FailureTurnIndex != 1 {
		t.Errorf("chat = %+v", got)
	}
}

func TestTickets(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	v1 := genome.VersionKey(fixedNow)

	tickets := []*genome.Ticket{
		{Partition: lineage, SortKey: genome.TicketKey(v1, "a"), Status: genome.TicketOpen, Type: genome.TicketSystem, ChatSK: "chat-1"},
		{Partition: lineage, SortKey: genome.TicketKey(v1, "b"), Status: genome.TicketOpen, Type: genome.TicketUser, ChatSK: "chat-1"},
		{Partition: lineage, SortKey: genome.TicketKey(v1, "c"), Status: genome.TicketOpen, Type: genome.TicketSystem, ChatSK: "chat-2"},
	}
	for _, tk := range tickets {
		if err := p.PutTicket(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	if tickets[0].ID != "a" {
		t.Errorf("ticket id not derived from key: %q", tickets[0].ID)
	}

	tests := []struct {
		name   string
		filter TicketFilter
		want   int
	}{
		{"all", TicketFilter{}, 3},
		{"system", TicketFilter{Type: genome.TicketSystem}, 2},
		{"system for chat", TicketFilter{Type: genome.TicketSystem, ChatSK: "chat-1"}, 1},
		{"closed", TicketFilter{Status: genome.TicketClosed}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ListTickets(ctx, lineage, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d tickets, want %d", len(got), tt.want)
			}
		})
	}

	closed, err := p.CloseTicket(ctx, lineage, tickets[0].SortKey, "ops@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != genome.TicketClosed || closed.ClosedBy != "ops@example.com" || closed.ClosedAt == "" {
		t.Errorf("closed ticket = %+v", closed)
	}
	open, _ := p.ListTickets(ctx, lineage, TicketFilter{Status: genome.TicketOpen})
	if len(open) != 2 {
		t.Errorf("open tickets = %d, want 2", len(open))
	}

	if _, err := p.CloseTicket(ctx, lineage, genome.TicketKey(v1, "zz"), "x"); !errors.Is(err, genome.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSwapPointer(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	v1 := genome.VersionKey(fixedNow)
	v2 := genome.VersionKey(fixedNow.Add(time.Second))
	v3 := genome.VersionKey(fixedNow.Add(2 * time.Second))

	if _, err := p.SwapPointer(ctx, lineage, v1, v2, "x"); !errors.Is(err, ErrPointerMoved) {
		t.Fatalf("swap without pointer: expected ErrPointerMoved, got %v", err)
	}
	if _, err := p.SwapPointer(ctx, lineage, "", v1, "seed"); err != nil {
		t.Fatalf("initial swap: %v", err)
	}
	if _, err := p.SwapPointer(ctx, lineage, v1, v2, "supervisor"); err != nil {
		t.Fatalf("swap v1->v2: %v", err)
	}
	if _, err := p.SwapPointer(ctx, lineage, v1, v3, "supervisor"); !errors.Is(err, ErrPointerMoved) {
		t.Errorf("stale swap: expected ErrPointerMoved, got %v", err)
	}

	ptr, _ := p.GetPointer(ctx, lineage)
	if ptr.ActiveVersionSK != v2 {
		t.Errorf("pointer = %s, want %s", ptr.ActiveVersionSK, v2)
	}
}

type plainStore struct{ store.Store }

func TestSwapPointer_Unsupported(t *testing.T) {
	p := New(plainStore{store.NewMemoryStore()})
	if _, err := p.SwapPointer(context.Background(), lineage, "", "VERSION#x", "x"); !errors.Is(err, ErrSwapUnsupported) {
		t.Errorf("expected ErrSwapUnsupported, got %v", err)
	}
	if _, err := p.ListPartitions(context.Background()); err == nil {
		t.Error("expected error listing partitions on a plain store")
	}
}

func TestUpdateEconomics(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	v1 := genome.VersionKey(fixedNow)
	if err := p.PutVersion(ctx, testVersion(v1)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.UpdateEconomics(ctx, lineage, v1, func(e *genome.Economics) { e.Likes++ }); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := p.GetVersion(ctx, lineage, v1)
	if got.Economics == nil || got.Economics.Likes != 2 {
		t.Errorf("economics = %+v", got.Economics)
	}
	if got.Brain.Persona.Role != "Concierge" {
		t.Error("behavioural fields changed by economics update")
	}

	if _, err := p.UpdateEconomics(ctx, lineage, "VERSION#missing", func(*genome.Economics) {}); !errors.Is(err, genome.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
