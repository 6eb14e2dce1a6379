package genepool

import (
	"context"
	"fmt"

	"mercator-hq/darwin/pkg/genome"
)

// GetVersion reads a top-level genome version.
func (p *Pool) GetVersion(ctx context.Context, pk, sk string) (*genome.Version, error) {
	var v genome.Version
	if _, err := p.getEntity(ctx, "genome", pk, sk, &v); err != nil {
		return nil, err
	}
	fillKeys(&v, pk, sk)
	return &v, nil
}

// PutVersion writes a top-level genome version.
func (p *Pool) PutVersion(ctx context.Context, v *genome.Version) error {
	key, err := genome.ParseKey(v.SortKey)
	if err != nil {
		return err
	}
	if key.Kind != genome.KindVersion {
		return genome.NewValidationError("sk", fmt.Sprintf("%q is not a version key", v.SortKey))
	}
	v.EntityType = genome.EntityGenome
	return p.putEntity(ctx, genome.EntityGenome, v.Partition, v.SortKey, v)
}

// ListVersions returns the top-level versions of a lineage, oldest first.
func (p *Pool) ListVersions(ctx context.Context, pk string) ([]*genome.Version, error) {
	return query[genome.Version](ctx, p, pk, genome.VersionPrefix, genome.KindVersion)
}

// GetChallenger reads a challenger.
func (p *Pool) GetChallenger(ctx context.Context, pk, sk string) (*genome.Version, error) {
	var v genome.Version
	if _, err := p.getEntity(ctx, "challenger", pk, sk, &v); err != nil {
		return nil, err
	}
	fillKeys(&v, pk, sk)
	return &v, nil
}

// PutChallenger writes a challenger nested under its parent version.
func (p *Pool) PutChallenger(ctx context.Context, v *genome.Version) error {
	key, err := genome.ParseKey(v.SortKey)
	if err != nil {
		return err
	}
	if key.Kind != genome.KindChallenger {
		return genome.NewValidationError("sk", fmt.Sprintf("%q is not a challenger key", v.SortKey))
	}
	v.EntityType = genome.EntityChallenger
	v.Attempt = key.Attempt
	return p.putEntity(ctx, genome.EntityChallenger, v.Partition, v.SortKey, v)
}

// ListChallengers returns the challengers nested under versionSK, ordered
// by sort key.
func (p *Pool) ListChallengers(ctx context.Context, pk, versionSK string) ([]*genome.Version, error) {
	return query[genome.Version](ctx, p, pk, genome.ChallengerPrefix(versionSK), genome.KindChallenger)
}

// Lineage builds the version DAG of a lineage from its versions and
// challengers.
func (p *Pool) Lineage(ctx context.Context, pk string) (*genome.Lineage, error) {
	versions, err := query[genome.Version](ctx, p, pk, genome.VersionPrefix, genome.KindVersion)
	if err != nil {
		return nil, err
	}
	challengers, err := query[genome.Version](ctx, p, pk, genome.VersionPrefix, genome.KindChallenger)
	if err != nil {
		return nil, err
	}
	return genome.NewLineage(append(versions, challengers...)), nil
}

// UpdateEconomics applies fn to the economics section of a version and
// writes it back. This is the one in-place update a version allows; the
// read-modify-write is last-writer-wins.
func (p *Pool) UpdateEconomics(ctx context.Context, pk, sk string, fn func(*genome.Economics)) (*genome.Version, error) {
	v, err := p.GetVersion(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	if v.Economics == nil {
		v.Economics = &genome.Economics{}
	}
	fn(v.Economics)
	if err := p.putEntity(ctx, genome.EntityGenome, pk, sk, v); err != nil {
		return nil, err
	}
	return v, nil
}

func fillKeys(v *genome.Version, pk, sk string) {
	if v.Partition == "" {
		v.Partition = pk
	}
	if v.SortKey == "" {
		v.SortKey = sk
	}
}
