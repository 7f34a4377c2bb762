package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the app-owned splitsync.db.
// The entity tables and the mutation queue share this one connection so
// a single transaction can span both.
type DB struct {
	*sql.DB
}

// execer is satisfied by both *DB and *sql.Tx, so entity upserts and
// queue enqueues can run standalone or inside a mutator transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// nullMillis maps the zero timestamp to SQL NULL so "never deleted"
// rows satisfy deleted_at IS NULL filters.
func nullMillis(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
