package genepool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/store"
)

// GetPointer reads the CURRENT pointer of a lineage.
func (p *Pool) GetPointer(ctx context.Context, pk string) (*genome.Pointer, error) {
	ptr, _, err := p.getPointer(ctx, pk)
	return ptr, err
}

func (p *Pool) getPointer(ctx context.Context, pk string) (*genome.Pointer, int64, error) {
	var ptr genome.Pointer
	item, err := p.getEntity(ctx, "pointer", pk, genome.CurrentKey, &ptr)
	if err != nil {
		var nf *genome.NotFoundError
		if errors.As(err, &nf) {
			nf.SortKey = ""
		}
		return nil, 0, err
	}
	return &ptr, item.Revision, nil
}

// ResolveActive follows the CURRENT pointer to the active version.
// A missing pointer, an empty pointer or a dangling pointer is reported as
// not found.
func (p *Pool) ResolveActive(ctx context.Context, pk string) (*genome.Version, error) {
	ptr, err := p.GetPointer(ctx, pk)
	if err != nil {
		return nil, err
	}
	if ptr.ActiveVersionSK == "" {
		return nil, genome.NewNotFound("active version", pk, genome.CurrentKey)
	}
	return p.GetVersion(ctx, pk, ptr.ActiveVersionSK)
}

func (p *Pool) newPointer(pk, versionSK, updatedBy string) *genome.Pointer {
	return &genome.Pointer{
		Partition:       pk,
		SortKey:         genome.CurrentKey,
		EntityType:      genome.EntityPointer,
		ActiveVersionSK: versionSK,
		LastUpdated:     genome.FormatTimestamp(p.now()),
		UpdatedBy:       updatedBy,
	}
}

// SetPointer overwrites the CURRENT pointer unconditionally.
func (p *Pool) SetPointer(ctx context.Context, pk, versionSK, updatedBy string) (*genome.Pointer, error) {
	ptr := p.newPointer(pk, versionSK, updatedBy)
	if err := p.putEntity(ctx, genome.EntityPointer, pk, genome.CurrentKey, ptr); err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "pointer updated", "pk", pk, "active_version_sk", versionSK, "updated_by", updatedBy)
	return ptr, nil
}

// SwapPointer moves CURRENT to versionSK only if it still names
// expectedSK. An empty expectedSK requires that no pointer exists yet.
// ErrPointerMoved reports a concurrent promotion.
func (p *Pool) SwapPointer(ctx context.Context, pk, expectedSK, versionSK, updatedBy string) (*genome.Pointer, error) {
	swapper, ok := p.store.(store.Swapper)
	if !ok {
		return nil, ErrSwapUnsupported
	}

	var revision int64
	current, rev, err := p.getPointer(ctx, pk)
	switch {
	case errors.Is(err, genome.ErrNotFound):
		if expectedSK != "" {
			return nil, fmt.Errorf("%w: expected %s, found none", ErrPointerMoved, expectedSK)
		}
	case err != nil:
		return nil, err
	default:
		if current.ActiveVersionSK != expectedSK {
			return nil, fmt.Errorf("%w: expected %s, found %s", ErrPointerMoved, expectedSK, current.ActiveVersionSK)
		}
		revision = rev
	}

	ptr := p.newPointer(pk, versionSK, updatedBy)
	body, err := json.Marshal(ptr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pointer: %w", err)
	}
	err = swapper.PutIfRevision(ctx, &store.Item{
		Partition:  pk,
		SortKey:    genome.CurrentKey,
		EntityType: genome.EntityPointer,
		Body:       body,
	}, revision)
	if errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("%w: concurrent update of %s", ErrPointerMoved, pk)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to swap pointer %s: %w", pk, err)
	}
	p.logger.InfoContext(ctx, "pointer swapped", "pk", pk, "from", expectedSK, "to", versionSK, "updated_by", updatedBy)
	return ptr, nil
}
