package genepool

import (
	"context"
	"fmt"

	"mercator-hq/darwin/pkg/genome"
)

// PutTicket writes a ticket.
func (p *Pool) PutTicket(ctx context.Context, t *genome.Ticket) error {
	key, err := genome.ParseKey(t.SortKey)
	if err != nil {
		return err
	}
	if key.Kind != genome.KindTicket {
		return genome.NewValidationError("sk", fmt.Sprintf("%q is not a ticket key", t.SortKey))
	}
	t.EntityType = genome.EntityTicket
	if t.ID == "" {
		t.ID = key.TicketID
	}
	return p.putEntity(ctx, genome.EntityTicket, t.Partition, t.SortKey, t)
}

// GetTicket reads a ticket.
func (p *Pool) GetTicket(ctx context.Context, pk, sk string) (*genome.Ticket, error) {
	var t genome.Ticket
	if _, err := p.getEntity(ctx, "ticket", pk, sk, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TicketFilter narrows ListTickets. Zero fields match everything.
type TicketFilter struct {
	Status genome.TicketStatus
	Type   genome.TicketType
	ChatSK string
}

func (f TicketFilter) matches(t *genome.Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.ChatSK != "" && t.ChatSK != f.ChatSK {
		return false
	}
	return true
}

// ListTickets returns the tickets of a lineage matching filter, ordered by
// sort key.
func (p *Pool) ListTickets(ctx context.Context, pk string, filter TicketFilter) ([]*genome.Ticket, error) {
	all, err := query[genome.Ticket](ctx, p, pk, genome.VersionPrefix, genome.KindTicket)
	if err != nil {
		return nil, err
	}
	var out []*genome.Ticket
	for _, t := range all {
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CloseTicket marks a ticket CLOSED. Closing a closed ticket is a no-op.
func (p *Pool) CloseTicket(ctx context.Context, pk, sk, closedBy string) (*genome.Ticket, error) {
	t, err := p.GetTicket(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	if t.Status == genome.TicketClosed {
		return t, nil
	}
	t.Status = genome.TicketClosed
	t.ClosedAt = genome.FormatTimestamp(p.now())
	t.ClosedBy = closedBy
	if err := p.PutTicket(ctx, t); err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "ticket closed", "pk", pk, "sk", sk, "closed_by", closedBy)
	return t, nil
}
