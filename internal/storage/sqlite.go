package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/cogninote/internal/models"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider as a single row of a key-value table.
type SQLite struct {
	conn *sql.DB
	key  string
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn, key string) (*SQLite, error) {
	if key == "" {
		return nil, fmt.Errorf("storage: key is required")
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(kvSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn, key: key}, nil
}

// Load returns the collection stored under the key.
func (s *SQLite) Load(ctx context.Context) ([]models.Note, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Note{}, nil
		}
		return nil, fmt.Errorf("storage: load %s: %w", s.key, err)
	}
	return decode([]byte(value))
}

// Save overwrites the row under the key with the full collection.
func (s *SQLite) Save(ctx context.Context, notes []models.Note) error {
	data, err := encode(notes)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, s.key, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", s.key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
