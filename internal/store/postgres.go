package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"typeproof/internal/keystroke"
)

// PostgresStore is an EventStore backed by PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	limits Limits
	owned  bool
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresLimits bounds per-document ledger size.
func WithPostgresLimits(l Limits) PostgresOption {
	return func(s *PostgresStore) {
		s.limits = l
	}
}

// OpenPostgres connects to dsn, verifies the connection and applies migrations.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPostgresStore(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewPostgresStore wraps an existing pool. The caller keeps ownership of db.
func NewPostgresStore(ctx context.Context, db *sql.DB, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := migrate(ctx, db, postgresMigrations, postgresBind); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the pool if OpenPostgres created it.
func (s *PostgresStore) Close() error {
	if s.owned && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *PostgresStore) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

func (s *PostgresStore) Append(ctx context.Context, b Batch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize appends per document so the size limit sees a stable count.
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", b.DocumentID); err != nil {
		return 0, fmt.Errorf("lock document: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_events WHERE document_id = $1", b.DocumentID,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	room := s.limits.remaining(current)

	events := b.Events
	var full error
	if room >= 0 {
		events, err = s.fitToRoom(ctx, tx, b.DocumentID, events, room)
		if err != nil {
			return 0, err
		}
		if len(events) < len(b.Events) {
			full = ErrLedgerFull
		}
	}

	appended := 0
	if len(events) > 0 {
		appended, err = insertEvents(ctx, tx, b, events)
		if err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_batches (batch_id, document_id, received_at, submitted, appended)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.DocumentID, b.ReceivedAt, len(b.Events), appended,
	); err != nil {
		return 0, fmt.Errorf("record batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return appended, full
}

// insertEvents writes the batch with one statement. Array order is kept so
// the first occurrence of a repeated sequence number wins.
func insertEvents(ctx context.Context, tx *sql.Tx, b Batch, events []keystroke.Event) (int, error) {
	n := len(events)
	seqs := make([]int64, n)
	types := make([]string, n)
	codes := make([]string, n)
	chars := make([]sql.NullString, n)
	stamps := make([]float64, n)
	units := make([]string, n)
	cursors := make([]int64, n)
	for i, ev := range events {
		seqs[i] = int64(ev.Sequence)
		types[i] = string(ev.Type)
		codes[i] = ev.KeyCode
		chars[i] = nullString(ev.Character)
		stamps[i] = ev.Timestamp
		units[i] = string(ev.Unit)
		cursors[i] = int64(ev.Cursor)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_events
		    (document_id, sequence_number, event_type, key_code, character, timestamp, timestamp_unit, cursor_position, batch_id)
		SELECT $1, u.seq, u.typ, u.code, u.chr, u.ts, u.unit, u.cur, $9
		FROM unnest($2::bigint[], $3::text[], $4::text[], $5::text[], $6::double precision[], $7::text[], $8::bigint[])
		     WITH ORDINALITY AS u(seq, typ, code, chr, ts, unit, cur, ord)
		ORDER BY u.ord
		ON CONFLICT (document_id, sequence_number) DO NOTHING`,
		b.DocumentID, pq.Array(seqs), pq.Array(types), pq.Array(codes), pq.Array(chars),
		pq.Array(stamps), pq.Array(units), pq.Array(cursors), b.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// fitToRoom trims events so that at most room new sequence numbers are
// inserted. Already-stored sequence numbers do not consume room.
func (s *PostgresStore) fitToRoom(ctx context.Context, tx *sql.Tx, documentID string, events []keystroke.Event, room int) ([]keystroke.Event, error) {
	seqs := make([]int64, len(events))
	for i, ev := range events {
		seqs[i] = int64(ev.Sequence)
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT sequence_number FROM ledger_events WHERE document_id = $1 AND sequence_number = ANY($2)",
		documentID, pq.Array(seqs))
	if err != nil {
		return nil, fmt.Errorf("lookup sequences: %w", err)
	}
	defer rows.Close()

	stored := make(map[uint64]struct{})
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		stored[uint64(seq)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequences: %w", err)
	}

	fresh := make(map[uint64]struct{})
	for i, ev := range events {
		if _, ok := stored[ev.Sequence]; ok {
			continue
		}
		if _, ok := fresh[ev.Sequence]; ok {
			continue
		}
		if len(fresh) == room {
			return events[:i], nil
		}
		fresh[ev.Sequence] = struct{}{}
	}
	return events, nil
}

func (s *PostgresStore) Events(ctx context.Context, documentID string) ([]keystroke.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, event_type, key_code, character, timestamp, timestamp_unit, cursor_position
		FROM ledger_events WHERE document_id = $1 ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) Count(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_events WHERE document_id = $1", documentID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Batches(ctx context.Context, documentID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, document_id, received_at, submitted, appended
		FROM ingest_batches WHERE document_id = $1 ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var r BatchRecord
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ReceivedAt, &r.Submitted, &r.Appended); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		r.ReceivedAt = r.ReceivedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Documents(ctx context.Context) ([]DocumentSummary, error) {
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
		if err := rows.Scan(&d.DocumentID, &d.FirstSeen, &d.LastSeen, &d.EventCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.FirstSeen = d.FirstSeen.UTC()
		d.LastSeen = d.LastSeen.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
