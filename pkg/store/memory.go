package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Items are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	items map[string]map[string]*Item
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[string]*Item),
		now:   time.Now,
	}
}

// Get returns a copy of the item at the key.
func (s *MemoryStore) Get(ctx context.Context, partition, sortKey string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[partition][sortKey]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

// Put stores a copy of the item.
func (s *MemoryStore) Put(ctx context.Context, item *Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return NewStorageError("memory", "put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(item)
	return nil
}

// PutIfRevision stores the item only if the current revision matches.
func (s *MemoryStore) PutIfRevision(ctx context.Context, item *Item, revision int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return NewStorageError("memory", "put_if_revision", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.items[item.Partition][item.SortKey]; ok {
		current = existing.Revision
	}
	if current != revision {
		return ErrConflict
	}
	s.putLocked(item)
	return nil
}

func (s *MemoryStore) putLocked(item *Item) {
	part, ok := s.items[item.Partition]
	if !ok {
		part = make(map[string]*Item)
		s.items[item.Partition] = part
	}
	stored := cloneItem(item)
	stored.Revision = 1
	if existing, ok := part[item.SortKey]; ok {
		stored.Revision = existing.Revision + 1
	}
	stored.UpdatedAt = s.now().UTC()
	part[item.SortKey] = stored
}

// QueryPrefix returns copies of the matching items in sort-key order.
func (s *MemoryStore) QueryPrefix(ctx context.Context, partition, prefix string) ([]*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Item
	for sk, item := range s.items[partition] {
		if strings.HasPrefix(sk, prefix) {
			results = append(results, cloneItem(item))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].SortKey < results[j].SortKey
	})
	return results, nil
}

// ListPartitions returns every partition holding at least one item.
func (s *MemoryStore) ListPartitions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.items))
	for pk, part := range s.items {
		if len(part) > 0 {
			out = append(out, pk)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
