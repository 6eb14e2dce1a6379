package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		cfg := opts.SQLite
		return NewSQLiteStore(&cfg)
	case BackendPostgres:
		cfg := opts.Postgres
		return NewPostgresStore(ctx, &cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
