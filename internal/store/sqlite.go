package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"typeproof/internal/keystroke"
)

// SQLiteStore is an EventStore backed by a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	limits Limits
}

// OpenSQLite opens or creates the database at path and applies migrations.
// path may be ":memory:" for a throwaway database.
func OpenSQLite(path string, limits Limits) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db, sqliteMigrations, sqliteBind); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, limits: limits}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

func (s *SQLiteStore) Append(ctx context.Context, b Batch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_events WHERE document_id = ?", b.DocumentID,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	room := s.limits.remaining(current)

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ledger_events
		    (document_id, sequence_number, event_type, key_code, character, timestamp, timestamp_unit, cursor_position, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	appended := 0
	var full error
	for _, ev := range b.Events {
		if room == 0 {
			exists, err := sqliteHasSequence(ctx, tx, b.DocumentID, ev.Sequence)
			if err != nil {
				return 0, err
			}
			if exists {
				continue
			}
			full = ErrLedgerFull
			break
		}

		res, err := stmt.ExecContext(ctx,
			b.DocumentID, int64(ev.Sequence), string(ev.Type), ev.KeyCode, nullString(ev.Character),
			ev.Timestamp, string(ev.Unit), int64(ev.Cursor), b.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert event %d: %w", ev.Sequence, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			appended++
			if room > 0 {
				room--
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_batches (batch_id, document_id, received_at, submitted, appended)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.DocumentID, b.ReceivedAt.UnixNano(), len(b.Events), appended,
	); err != nil {
		return 0, fmt.Errorf("record batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return appended, full
}

func sqliteHasSequence(ctx context.Context, tx *sql.Tx, documentID string, seq uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM ledger_events WHERE document_id = ? AND sequence_number = ?", documentID, int64(seq),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup sequence: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Events(ctx context.Context, documentID string) ([]keystroke.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, event_type, key_code, character, timestamp, timestamp_unit, cursor_position
		FROM ledger_events WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_events WHERE document_id = ?", documentID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Batches(ctx context.Context, documentID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, document_id, received_at, submitted, appended
		FROM ingest_batches WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var r BatchRecord
		var receivedNs int64
		if err := rows.Scan(&r.ID, &r.DocumentID, &receivedNs, &r.Submitted, &r.Appended); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		r.ReceivedAt = time.Unix(0, receivedNs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Documents(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.document_id, MIN(b.received_at), MAX(b.received_at),
		       (SELECT COUNT(*) FROM ledger_events e WHERE e.document_id = b.document_id)
		FROM ingest_batches b GROUP BY b.document_id ORDER BY b.document_id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var first, last int64
		if err := rows.Scan(&d.DocumentID, &first, &last, &d.EventCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.FirstSeen = time.Unix(0, first).UTC()
		d.LastSeen = time.Unix(0, last).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// scanEvents reads rows selected as (sequence_number, event_type, key_code,
// character, timestamp, timestamp_unit, cursor_position).
func scanEvents(rows *sql.Rows) ([]keystroke.Event, error) {
	var out []keystroke.Event
	for rows.Next() {
		var (
			ev        keystroke.Event
			seq       int64
			eventType string
			char      sql.NullString
			unit      string
			cursor    int64
		)
		if err := rows.Scan(&seq, &eventType, &ev.KeyCode, &char, &ev.Timestamp, &unit, &cursor); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Sequence = uint64(seq)
		ev.Type = keystroke.EventType(eventType)
		ev.Unit = keystroke.TimestampUnit(unit)
		ev.Cursor = uint32(cursor)
		if char.Valid {
			c := char.String
			ev.Character = &c
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
