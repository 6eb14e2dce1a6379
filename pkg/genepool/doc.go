// Package genepool provides typed access to the gene pool: genome versions,
// challengers, chats, tickets and the CURRENT pointer of every lineage.
//
// A Pool wraps a store.Store and translates between stored items and the
// entities of package genome. Missing items are reported as
// *genome.NotFoundError, so callers classify them with
// errors.Is(err, genome.ErrNotFound).
//
// Basic usage:
//
//	pool := genepool.New(store.NewMemoryStore())
//	active, err := pool.ResolveActive(ctx, "hotel-concierge")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(active.SortKey)
package genepool
