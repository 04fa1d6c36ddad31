// Package db provides access to the Jellyfin SQLite database files being
// migrated and implements the column rewriting used by the migration passes.
//
// Each database file is opened, fully processed by the current job and
// closed again before the next job touches it; there are no cross-job
// transactions. All mutation targets are expected to be copies of the
// original files.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// DB wraps a connection to one Jellyfin SQLite database file.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the database file at path using the libSQL driver.
// The caller must Close when done.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("libsql", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}
	// Jellyfin's own writes can leave the file busy-locked briefly when the
	// source was copied from a live install. The PRAGMA returns a result
	// row, which this driver only accepts through Query.
	rows, err := conn.Query("PRAGMA busy_timeout=5000")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	_ = rows.Close()
	return &DB{conn: conn, path: path}, nil
}

// RawDB returns the underlying sql.DB connection for callers that need to
// run their own queries (identifier derivation does).
func (d *DB) RawDB() *sql.DB {
	return d.conn
}

// Path returns the file path this handle was opened on.
func (d *DB) Path() string {
	return d.path
}

// Close closes the connection.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
