// Package store provides the partitioned key-value storage that holds the
// gene pool.
//
// Items are addressed by a partition key (the lineage) and a sort key (see
// package genome for the key grammar). Every backend supports point reads,
// unconditional writes and ascending prefix queries within a partition.
// There are no multi-item transactions.
//
// # Backends
//
//   - MemoryStore: maps guarded by a RWMutex, for tests and local runs
//   - SQLiteStore: a single table on modernc.org/sqlite ("sqlite") or
//     github.com/mattn/go-sqlite3 ("sqlite3")
//   - PostgresStore: the same table on a pgx connection pool
//
// All three also implement Lister and Swapper. Swapper offers a
// revision-guarded write used for optional guarded pointer promotion.
package store
