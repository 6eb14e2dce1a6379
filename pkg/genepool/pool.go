package genepool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/store"
)

var (
	// ErrPointerMoved is returned by SwapPointer when CURRENT no longer
	// names the expected version.
	ErrPointerMoved = errors.New("current pointer moved")

	// ErrSwapUnsupported is returned by SwapPointer when the backing store
	// has no conditional write.
	ErrSwapUnsupported = errors.New("store does not support conditional writes")
)

// Pool is the typed gene pool repository.
type Pool struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used for pointer and ticket timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Pool over s.
func New(s store.Store, opts ...Option) *Pool {
	p := &Pool{
		store:  s,
		logger: slog.Default().With("component", "genepool"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the backing store.
func (p *Pool) Store() store.Store { return p.store }

// Now returns the pool's current time.
func (p *Pool) Now() time.Time { return p.now() }

// getEntity reads and decodes the item at (pk, sk).
func (p *Pool) getEntity(ctx context.Context, entity, pk, sk string, out any) (*store.Item, error) {
	item, err := p.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return nil, genome.NewNotFound(entity, pk, sk)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s/%s: %w", entity, pk, sk, err)
	}
	if err := json.Unmarshal(item.Body, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s/%s: %w", entity, pk, sk, err)
	}
	return item, nil
}

// putEntity encodes and writes v at (pk, sk).
func (p *Pool) putEntity(ctx context.Context, entityType, pk, sk string, v any) error {
	if pk == "" || sk == "" {
		return genome.NewValidationError("pk", "partition and sort key are required")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s/%s: %w", entityType, pk, sk, err)
	}
	if err := p.store.Put(ctx, &store.Item{
		Partition:  pk,
		SortKey:    sk,
		EntityType: entityType,
		Body:       body,
	}); err != nil {
		return fmt.Errorf("failed to write %s %s/%s: %w", entityType, pk, sk, err)
	}
	return nil
}

// query returns the decoded items under prefix whose keys are of kind.
func query[T any](ctx context.Context, p *Pool, pk, prefix string, kind genome.KeyKind) ([]*T, error) {
	items, err := p.store.QueryPrefix(ctx, pk, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s/%s: %w", pk, prefix, err)
	}
	var out []*T
	for _, item := range items {
		key, err := genome.ParseKey(item.SortKey)
		if err != nil || key.Kind != kind {
			continue
		}
		v := new(T)
		if err := json.Unmarshal(item.Body, v); err != nil {
			p.logger.WarnContext(ctx, "skipping undecodable item",
				"pk", pk, "sk", item.SortKey, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ListPartitions returns every lineage in the store, if the backend can
// enumerate them.
func (p *Pool) ListPartitions(ctx context.Context) ([]string, error) {
	lister, ok := p.store.(store.Lister)
	if !ok {
		return nil, errors.New("store cannot enumerate partitions")
	}
	return lister.ListPartitions(ctx)
}
