package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// SQLiteMemory implements Memory on a single-file SQLite database.
// It is the durable backend for a single storefront process.
type SQLiteMemory struct {
	db     *sql.DB
	path   string
	logger Logger
	now    func() time.Time
}

// OpenSQLiteMemory opens (creating when needed) the database at path and
// ensures the kv table exists.
func OpenSQLiteMemory(path string, logger Logger) (*SQLiteMemory, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", ErrMissingConfiguration)
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %v: %w", err, ErrConnectionFailed)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %v: %w", err, ErrConnectionFailed)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %v: %w", err, ErrStorageUnavailable)
	}

	logger.Info("SQLite storage opened", map[string]interface{}{
		"path": cleanPath,
	})

	return &SQLiteMemory{
		db:     db,
		path:   cleanPath,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetNow overrides the time source used for TTL expiry.
func (s *SQLiteMemory) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Path returns the database file path
func (s *SQLiteMemory) Path() string {
	return s.path
}

// Close releases the underlying database handle.
func (s *SQLiteMemory) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get retrieves a value
func (s *SQLiteMemory) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		s.logger.ErrorWithContext(ctx, "SQLite get failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return "", fmt.Errorf("sqlite get %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	if expiresAt > 0 && s.now().UnixMilli() >= expiresAt {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return value, nil
}

// Set upserts a value with optional TTL
func (s *SQLiteMemory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		    value = excluded.value,
		    expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "SQLite set failed", map[string]interface{}{
			"key":        key,
			"value_size": len(value),
			"error":      err.Error(),
		})
		return fmt.Errorf("sqlite set %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return nil
}

// Delete removes a key
func (s *SQLiteMemory) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return nil
}

// Exists checks if a live key exists
func (s *SQLiteMemory) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HealthCheck verifies the database is reachable
func (s *SQLiteMemory) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %v: %w", err, ErrConnectionFailed)
	}
	return nil
}
