package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one schema step. Up is written in the dialect of the store
// that owns the migration list.
type Migration struct {
	Version     int
	Description string
	Up          string
}

var sqliteMigrations = []Migration{
	{
		Version:     1,
		Description: "ledger events keyed by document and sequence number",
		Up: `
CREATE TABLE IF NOT EXISTS ledger_events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id     TEXT NOT NULL,
    sequence_number INTEGER NOT NULL,
    event_type      TEXT NOT NULL,
    key_code        TEXT NOT NULL,
    character       TEXT,
    timestamp       REAL NOT NULL,
    timestamp_unit  TEXT NOT NULL,
    cursor_position INTEGER NOT NULL DEFAULT 0,
    batch_id        TEXT,
    UNIQUE (document_id, sequence_number)
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_document ON ledger_events(document_id, id);
`,
	},
	{
		Version:     2,
		Description: "ingestion batch history",
		Up: `
CREATE TABLE IF NOT EXISTS ingest_batches (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id    TEXT NOT NULL,
    document_id TEXT NOT NULL,
    received_at INTEGER NOT NULL,
    submitted   INTEGER NOT NULL,
    appended    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_batches_document ON ingest_batches(document_id, id);
`,
	},
}

var postgresMigrations = []Migration{
	{
		Version:     1,
		Description: "ledger events keyed by document and sequence number",
		Up: `
CREATE TABLE IF NOT EXISTS ledger_events (
    id              BIGSERIAL PRIMARY KEY,
    document_id     TEXT NOT NULL,
    sequence_number BIGINT NOT NULL,
    event_type      TEXT NOT NULL,
    key_code        TEXT NOT NULL,
    character       TEXT,
    timestamp       DOUBLE PRECISION NOT NULL,
    timestamp_unit  TEXT NOT NULL,
    cursor_position BIGINT NOT NULL DEFAULT 0,
    batch_id        TEXT,
    UNIQUE (document_id, sequence_number)
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_document ON ledger_events(document_id, id);
`,
	},
	{
		Version:     2,
		Description: "ingestion batch history",
		Up: `
CREATE TABLE IF NOT EXISTS ingest_batches (
    id          BIGSERIAL PRIMARY KEY,
    batch_id    TEXT NOT NULL,
    document_id TEXT NOT NULL,
    received_at TIMESTAMPTZ NOT NULL,
    submitted   INTEGER NOT NULL,
    appended    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_batches_document ON ingest_batches(document_id, id);
`,
	},
}

// migrate applies every migration newer than the recorded schema version.
// bind renders the dialect's nth placeholder.
func migrate(ctx context.Context, db *sql.DB, migrations []Migration, bind func(int) string) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  BIGINT NOT NULL,
			description TEXT
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	record := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at, description) VALUES (%s, %s, %s)",
		bind(1), bind(2), bind(3))

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, record, m.Version, time.Now().UnixNano(), m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// schemaVersion returns the highest applied migration.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

func sqliteBind(int) string { return "?" }
func postgresBind(n int) string { return fmt.Sprintf("$%d", n) }
