package fmdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // database/sql driver
)

const sessionSchema = `CREATE TABLE IF NOT EXISTS sessions (
	key        TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// SQLiteSessionStore persists session tokens in a SQLite file so that
// short-lived processes on one host, such as CLI invocations, share them.
type SQLiteSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteSessionConfig configures a SQLite session store.
type SQLiteSessionConfig struct {
	// Path of the database file. ":memory:" keeps it in memory.
	Path string
}

// NewSQLiteSessionStore opens or creates the database at config.Path.
func NewSQLiteSessionStore(config *SQLiteSessionConfig) (*SQLiteSessionStore, error) {
	if config == nil || config.Path == "" {
		return nil, ErrSQLiteConfigRequired
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to connect to session database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		_, err = db.Exec(pragma)
		if err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	_, err = db.Exec(sessionSchema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to apply session schema: %w", err)
	}

	return &SQLiteSessionStore{db: db, now: time.Now}, nil
}

// Get implements SessionStore.
func (s *SQLiteSessionStore) Get(ctx context.Context, key string) (string, error) {
	var (
		token     string
		expiresAt int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT token, expires_at FROM sessions WHERE key = ?`, key,
	).Scan(&token, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}

		return "", fmt.Errorf("failed to read session %q: %w", key, err)
	}

	if expiresAt > 0 && s.now().UnixMilli() >= expiresAt {
		_, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
		if err != nil {
			return "", fmt.Errorf("failed to evict session %q: %w", key, err)
		}

		return "", ErrSessionNotFound
	}

	return token, nil
}

// Set implements SessionStore.
func (s *SQLiteSessionStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
		key, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store session %q: %w", key, err)
	}

	return nil
}

// Delete implements SessionStore.
func (s *SQLiteSessionStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete session %q: %w", key, err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
