package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// Pragmas applied to every connection pool opened here.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// expandHome replaces a leading "~" path element with the home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("journal: home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// openDB opens an SQLite database with the production pragmas and creates
// the parent directory of path when needed.
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory journal for testing.
// It sets MaxOpenConns(1) so all queries hit the same in-memory database
// and registers t.Cleanup to close it.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	db, err := openDB(":memory:")
	if err != nil {
		t.Fatalf("journal.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	s, err := newStore(db)
	if err != nil {
		db.Close()
		t.Fatalf("journal.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const maxRetries = 3

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// execRetry executes a statement, retrying up to 3 times with 100/200/300 ms
// backoff while the database is busy. Two CLI processes may share a journal.
func execRetry(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	for i := range maxRetries {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("journal: context cancelled during retry: %w", ctx.Err())
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("journal: exec: max retries exceeded")
}
