package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// sqliteSchema creates the item table shared by every lineage.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
    pk TEXT NOT NULL,
    sk TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    body TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (pk, sk)
);

CREATE INDEX IF NOT EXISTS idx_items_entity ON items(pk, entity_type);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const (
	sqliteInsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`
	sqliteGetSchemaVersion    = `SELECT MAX(version) FROM schema_version`

	sqliteGet = `SELECT entity_type, body, revision, updated_at FROM items WHERE pk = ? AND sk = ?`

	sqlitePut = `
		INSERT INTO items (pk, sk, entity_type, body, revision, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET
			entity_type = excluded.entity_type,
			body = excluded.body,
			revision = items.revision + 1,
			updated_at = excluded.updated_at`

	sqliteInsertNew = `
		INSERT INTO items (pk, sk, entity_type, body, revision, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (pk, sk) DO NOTHING`

	sqliteUpdateRevision = `
		UPDATE items SET entity_type = ?, body = ?, revision = revision + 1, updated_at = ?
		WHERE pk = ? AND sk = ? AND revision = ?`

	sqliteQueryPrefix = `
		SELECT sk, entity_type, body, revision, updated_at FROM items
		WHERE pk = ? AND substr(sk, 1, ?) = ?
		ORDER BY sk ASC`

	sqliteListPartitions = `SELECT DISTINCT pk FROM items ORDER BY pk ASC`
)
