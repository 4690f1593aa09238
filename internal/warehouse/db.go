// Package warehouse owns the SQLite star schema and the job queue that feeds
// it. All writes go through transactions; a failed load leaves no partial
// rows behind.
package warehouse

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Warehouse wraps the SQLite connection for the dimensional store.
type Warehouse struct {
	db *sql.DB
}

// Open opens (or creates) the warehouse database at path and ensures the
// schema exists.
func Open(path string) (*Warehouse, error) {
	// Pragmas go in the DSN so every pooled connection gets them;
	// busy_timeout and foreign_keys are per-connection in SQLite. Concurrent
	// claims from multiple workers wait on busy_timeout instead of failing
	// immediately.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Warehouse{db: db}, nil
}

// DB exposes the underlying connection for read-only queries in tests.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

// Close closes the database connection.
func (w *Warehouse) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique or primary key
// constraint failure. The driver does not export a stable error type, so the
// check matches the constraint message SQLite itself produces.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
