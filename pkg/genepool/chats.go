package genepool

import (
	"context"
	"fmt"

	"mercator-hq/darwin/pkg/genome"
)

// GetChat reads a conversation.
func (p *Pool) GetChat(ctx context.Context, pk, sk string) (*genome.Chat, error) {
	var c genome.Chat
	if _, err := p.getEntity(ctx, "chat", pk, sk, &c); err != nil {
		return nil, err
	}
	if c.Partition == "" {
		c.Partition = pk
	}
	if c.SortKey == "" {
		c.SortKey = sk
	}
	return &c, nil
}

// PutChat writes a conversation. Two concurrent writers of the same chat
// race; the later write wins.
func (p *Pool) PutChat(ctx context.Context, c *genome.Chat) error {
	key, err := genome.ParseKey(c.SortKey)
	if err != nil {
		return err
	}
	if key.Kind != genome.KindChat {
		return genome.NewValidationError("sk", fmt.Sprintf("%q is not a chat key", c.SortKey))
	}
	c.EntityType = genome.EntityChat
	return p.putEntity(ctx, genome.EntityChat, c.Partition, c.SortKey, c)
}
