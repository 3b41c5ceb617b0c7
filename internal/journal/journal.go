// Package journal provides an optional SQLite-backed log of counted
// reactions.
//
// The journal is strictly supplementary: the CSV tally table stays the
// source of truth for counts, while the journal keeps one row per counted
// reaction for audit and per-author breakdowns. The counting engine records
// best-effort - a journal failure is logged by the caller and never blocks
// or rolls back a count.
//
// Database configuration:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL (balance durability/performance)
//   - busy_timeout=5000 for lock contention
//   - single connection (SQLite supports one writer at a time)
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one counted reaction.
type Entry struct {
	ID        string
	MessageID int64
	AuthorID  int64
	ReactorID int64
	Delta     int64
	Seq       int64
	CreatedAt time.Time
}

// Journal is an append-only reaction log.
type Journal struct {
	db    *sql.DB
	clock *clock
}

// Open creates or opens the journal database at the given path.
// Applies pragmas and the schema, then resumes the logical clock from the
// highest persisted seq. Idempotent - safe to call on an existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// Single writer avoids SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM reactions").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read max seq: %w", err)
	}

	return &Journal{db: db, clock: newClockAt(maxSeq.Int64)}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one counted reaction.
//
// The row ID is a UUIDv7 (time-sortable) and seq comes from the journal's
// logical clock. Satisfies tally.Recorder.
func (j *Journal) Record(messageID, authorID, reactorID, delta int64) error {
	entry := Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		MessageID: messageID,
		AuthorID:  authorID,
		ReactorID: reactorID,
		Delta:     delta,
		Seq:       j.clock.next(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := j.db.Exec(`
		INSERT INTO reactions (id, message_id, author_id, reactor_id, delta, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		entry.ID,
		entry.MessageID,
		entry.AuthorID,
		entry.ReactorID,
		entry.Delta,
		entry.Seq,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record reaction: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first, up to limit.
// Ordering uses seq, never timestamps.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_id, author_id, reactor_id, delta, seq, created_at
		FROM reactions
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByAuthor returns all entries for one author, oldest first.
func (j *Journal) ByAuthor(ctx context.Context, authorID int64) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_id, author_id, reactor_id, delta, seq, created_at
		FROM reactions
		WHERE author_id = ?
		ORDER BY seq ASC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("query by author: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Len returns the total number of journal entries.
func (j *Journal) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.MessageID, &e.AuthorID, &e.ReactorID, &e.Delta, &e.Seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
