// Package escalation decides whether a failed evolution round is retried
// or handed to a human as an OPEN ticket.
package escalation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
)

// Transition is the result of one round of an evolution cycle.
type Transition int

const (
	// Complete ends the cycle successfully.
	Complete Transition = iota
	// Loop starts another mutation round.
	Loop
	// Escalate ends the cycle with a ticket.
	Escalate
)

func (t Transition) String() string {
	switch t {
	case Complete:
		return "complete"
	case Loop:
		return "loop"
	case Escalate:
		return "escalate"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Next returns the transition after a round and the retry count the next
// round runs with.
func Next(succeeded bool, retryCount, maxRetries int) (Transition, int) {
	switch {
	case succeeded:
		return Complete, retryCount
	case retryCount < maxRetries:
		return Loop, retryCount + 1
	default:
		return Escalate, retryCount
	}
}

// UnknownChat stands in for a chat reference missing from the payload.
const UnknownChat = "UNKNOWN"

// Outcome is the result of HandleFailure.
type Outcome struct {
	// Terminal is true once a ticket was filed.
	Terminal   bool   `json:"terminal"`
	RetryCount int    `json:"retryCount"`
	Reason     string `json:"reason"`
	TicketID   string `json:"ticket_id,omitempty"`
	TicketSK   string `json:"ticket_sk,omitempty"`
}

// Failure describes the failed round.
type Failure struct {
	Reason       string
	ChallengerSK string
	Feedback     string
}

// Policy files SYSTEM tickets once retries are spent.
type Policy struct {
	Deps       pipeline.Deps
	MaxRetries int

	// NewID generates ticket ids. Defaults to random UUIDs.
	NewID func() string
}

// HandleFailure reports a retry while p.RetryCount < MaxRetries, otherwise
// writes an OPEN SYSTEM ticket against the genome that served the chat.
// A failed ticket write is returned.
func (pol *Policy) HandleFailure(ctx context.Context, p pipeline.Payload, f Failure) (Outcome, error) {
	if p.RetryCount < pol.MaxRetries {
		return Outcome{RetryCount: p.RetryCount, Reason: f.Reason}, nil
	}

	genomeSK := p.GenomeSK
	if genomeSK == "" {
		sk, err := genome.VersionFromChat(p.ChatSK)
		if err != nil {
			return Outcome{}, genome.NewValidationError("genome_sk", "cannot file a ticket without a genome")
		}
		genomeSK = sk
	}
	chatSK := p.ChatSK
	if chatSK == "" {
		chatSK = UnknownChat
	}
	challengerSK := f.ChallengerSK
	if challengerSK == "" {
		challengerSK = genome.NoChallengerSelected
	}

	newID := pol.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()
	t := &genome.Ticket{
		Partition:    p.PK,
		SortKey:      genome.TicketKey(genomeSK, id),
		ID:           id,
		Status:       genome.TicketOpen,
		Type:         genome.TicketSystem,
		ChatSK:       chatSK,
		ChallengerSK: challengerSK,
		Feedback:     f.Feedback,
		AIAnalysis:   f.Reason,
		CreatedAt:    genome.FormatTimestamp(pol.Deps.Pool.Now()),
	}
	if err := pol.Deps.Pool.PutTicket(ctx, t); err != nil {
		return Outcome{}, fmt.Errorf("failed to file ticket: %w", err)
	}
	pol.Deps.Metrics.RecordTicket(string(genome.TicketSystem))
	if pol.Deps.Logger != nil {
		pol.Deps.Logger.WarnContext(ctx, "evolution escalated", "ticket_sk", t.SortKey, "reason", f.Reason)
	}
	return Outcome{
		Terminal:   true,
		RetryCount: p.RetryCount,
		Reason:     "Final Failure. Ticket Created: " + id,
		TicketID:   id,
		TicketSK:   t.SortKey,
	}, nil
}
