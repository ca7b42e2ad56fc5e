// Package sqlite stores content blobs in a local SQLite file, used as a
// packaged content backend next to (or instead of) a content directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrContentNotFound is returned by Content when no row matches the address.
var ErrContentNotFound = errors.New("content not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS content (
	address    TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps a sql.DB holding the content table.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Content returns the blob stored under address.
func (s *Store) Content(ctx context.Context, address string) ([]byte, error) {
	var body []byte
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM content WHERE address = ?`, address).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrContentNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", address, err)
	}
	return body, nil
}

// Put inserts or replaces the blob stored under address.
func (s *Store) Put(ctx context.Context, address string, body []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO content (address, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(address) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
		address, body)
	if err != nil {
		return fmt.Errorf("sqlite: put %s: %w", address, err)
	}
	return nil
}

// Delete removes address. Deleting a missing address is not an error.
func (s *Store) Delete(ctx context.Context, address string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM content WHERE address = ?`, address); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", address, err)
	}
	return nil
}

// Addresses lists every stored address in lexical order.
func (s *Store) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT address FROM content ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
