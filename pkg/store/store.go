package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Get when no item exists at the key.
	ErrNotFound = errors.New("item not found")

	// ErrConflict is returned by PutIfRevision when the stored revision
	// differs from the expected one.
	ErrConflict = errors.New("revision conflict")
)

// Item is one stored record. Body holds the JSON encoding of the entity.
type Item struct {
	Partition  string
	SortKey    string
	EntityType string
	Body       json.RawMessage

	// Revision is assigned by the store: 1 on first write, incremented on
	// every overwrite. It is ignored on input.
	Revision int64

	// UpdatedAt is assigned by the store on write.
	UpdatedAt time.Time
}

// Store is the storage contract used by the gene pool.
type Store interface {
	// Get returns the item at (partition, sortKey) or ErrNotFound.
	Get(ctx context.Context, partition, sortKey string) (*Item, error)

	// Put writes the item unconditionally, replacing any previous item at
	// the same key.
	Put(ctx context.Context, item *Item) error

	// QueryPrefix returns the items of partition whose sort key starts with
	// prefix, in ascending sort-key order. An empty prefix matches every
	// item of the partition.
	QueryPrefix(ctx context.Context, partition, prefix string) ([]*Item, error)

	// Close releases the backend's resources.
	Close() error
}

// Lister enumerates partitions. Used by the pointer audit.
type Lister interface {
	ListPartitions(ctx context.Context) ([]string, error)
}

// Swapper writes an item only if the stored revision matches. A revision
// of 0 means the item must not exist yet. ErrConflict reports a mismatch.
type Swapper interface {
	PutIfRevision(ctx context.Context, item *Item, revision int64) error
}

// StorageError wraps a backend failure with the operation that caused it.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func validateItem(item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if item.Partition == "" || item.SortKey == "" {
		return errors.New("item requires partition and sort key")
	}
	if len(item.Body) == 0 {
		return errors.New("item body is empty")
	}
	return nil
}

func cloneItem(item *Item) *Item {
	out := *item
	out.Body = append(json.RawMessage(nil), item.Body...)
	return &out
}
