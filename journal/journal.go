// Package journal records every conversion attempt in an SQLite database so
// the CLI can list recent history.
//
// Usage:
//
//	j, err := journal.Open("~/.local/share/docforge/journal.db")
//	defer j.Close()
//	j.Record(ctx, journal.Entry{ID: id, Source: src, Target: "pdf", Dest: dst})
//	entries, err := j.Recent(ctx, 20)
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("journal: entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	source_fmt  TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL,
	dest        TEXT NOT NULL DEFAULT '',
	bytes       INTEGER NOT NULL DEFAULT 0,
	stage       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);
`

// Entry is one conversion attempt. A failed attempt has Stage and Error set
// and an empty Dest.
type Entry struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id,omitempty"`
	Source       string    `json:"source"`
	SourceFormat string    `json:"source_format,omitempty"`
	Target       string    `json:"target"`
	Dest         string    `json:"dest,omitempty"`
	Bytes        int64     `json:"bytes"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// OK reports whether the conversion succeeded.
func (e Entry) OK() bool { return e.Error == "" }

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database at path. A leading "~/" is
// the current user's home directory.
func Open(path string) (*Store, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts an entry. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("journal: entry id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := execRetry(ctx, s.db, `
		INSERT INTO conversions
			(id, request_id, source, source_fmt, target, dest, bytes, stage, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Source, e.SourceFormat, e.Target, e.Dest, e.Bytes,
		e.Stage, e.Error, e.DurationMS, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", e.ID, err)
	}
	return nil
}

const selectColumns = `id, request_id, source, source_fmt, target, dest, bytes, stage, error, duration_ms, created_at`

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM conversions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM conversions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("journal: get %s: %w", id, err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		created int64
	)
	err := sc.Scan(&e.ID, &e.RequestID, &e.Source, &e.SourceFormat, &e.Target, &e.Dest,
		&e.Bytes, &e.Stage, &e.Error, &e.DurationMS, &created)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.UnixMilli(created)
	return e, nil
}
