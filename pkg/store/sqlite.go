package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver
	_ "modernc.org/sqlite"          // "sqlite" driver
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite" (pure Go, default)
	// or "sqlite3" (cgo).
	Driver string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/genepool.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore implements Store on a single SQLite table.
type SQLiteStore struct {
	db        *sql.DB
	config    *SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once
	now       func() time.Time
}

// NewSQLiteStore opens the database, applies pragmas and creates the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, NewStorageError("sqlite", "open", errors.New("db path cannot be empty"))
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverCGO {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", config.Driver))
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "store.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." && config.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer; pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
		now:    time.Now,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(sqliteInsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(sqliteGetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Get returns the item at the key or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, partition, sortKey string) (*Item, error) {
	var (
		item    = &Item{Partition: partition, SortKey: sortKey}
		body    string
		updated string
	)
	err := s.db.QueryRowContext(ctx, sqliteGet, partition, sortKey).
		Scan(&item.EntityType, &body, &item.Revision, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	item.Body = []byte(body)
	item.UpdatedAt = parseStoredTime(updated)
	return item, nil
}

// Put upserts the item.
func (s *SQLiteStore) Put(ctx context.Context, item *Item) error {
	if err := validateItem(item); err != nil {
		return NewStorageError("sqlite", "put", err)
	}
	_, err := s.db.ExecContext(ctx, sqlitePut,
		item.Partition, item.SortKey, item.EntityType, string(item.Body), s.timestamp())
	if err != nil {
		return NewStorageError("sqlite", "put", err)
	}
	return nil
}

// PutIfRevision writes the item only if the stored revision matches.
func (s *SQLiteStore) PutIfRevision(ctx context.Context, item *Item, revision int64) error {
	if err := validateItem(item); err != nil {
		return NewStorageError("sqlite", "put_if_revision", err)
	}

	var (
		res sql.Result
		err error
	)
	if revision == 0 {
		res, err = s.db.ExecContext(ctx, sqliteInsertNew,
			item.Partition, item.SortKey, item.EntityType, string(item.Body), s.timestamp())
	} else {
		res, err = s.db.ExecContext(ctx, sqliteUpdateRevision,
			item.EntityType, string(item.Body), s.timestamp(), item.Partition, item.SortKey, revision)
	}
	if err != nil {
		return NewStorageError("sqlite", "put_if_revision", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "put_if_revision", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// QueryPrefix returns the matching items in sort-key order.
func (s *SQLiteStore) QueryPrefix(ctx context.Context, partition, prefix string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, sqliteQueryPrefix,
		partition, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, NewStorageError("sqlite", "query_prefix", err)
	}
	defer rows.Close()

	var results []*Item
	for rows.Next() {
		var (
			item    = &Item{Partition: partition}
			body    string
			updated string
		)
		if err := rows.Scan(&item.SortKey, &item.EntityType, &body, &item.Revision, &updated); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		item.Body = []byte(body)
		item.UpdatedAt = parseStoredTime(updated)
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query_prefix", err)
	}
	return results, nil
}

// ListPartitions returns every partition holding at least one item.
func (s *SQLiteStore) ListPartitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListPartitions)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_partitions", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, pk)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_partitions", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
		s.logger.Debug("SQLite store closed")
	})
	return err
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseStoredTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
