// Package store provides SQLite-backed persistence for the client session.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/Ayorinde-Codes/databyte-go/pkg/crypto"
)

// sealedKeys holds the keys whose values are encrypted at rest.
var sealedKeys = map[string]bool{
	KeyAuthToken:    true,
	KeyRefreshToken: true,
}

// SQLiteStore persists session state in a single key/value table.
type SQLiteStore struct {
	db     *sql.DB
	sealer *crypto.Sealer
}

// New opens (or creates) a SQLite database and runs migrations. A nil sealer
// stores token values in plaintext; pass one to seal them at rest.
func New(dbPath string, sealer *crypto.Sealer) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &SQLiteStore{db: db, sealer: sealer}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS session_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: migrate: %w", err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStore) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

// Get returns the value for key, or def when the key is absent or the
// stored value cannot be read or unsealed.
func (s *SQLiteStore) Get(key, def string) string {
	var value string
	err := s.db.QueryRowContext(context.Background(), "SELECT value FROM session_kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return def
	}
	if err != nil {
		slog.Debug("session store read failed", "key", key, "err", err)
		return def
	}
	if s.sealer != nil && sealedKeys[key] {
		plain, err := s.sealer.Open(value)
		if err != nil {
			slog.Warn("sealed session value unreadable, treating as absent", "key", key, "err", err)
			return def
		}
		return plain
	}
	return value
}

// Set stores a value under key, replacing any previous value.
func (s *SQLiteStore) Set(key, value string) error {
	if s.sealer != nil && sealedKeys[key] {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("store: seal %s: %w", key, err)
		}
		value = sealed
	}
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, datetime('now')) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.ExecContext(context.Background(), "DELETE FROM session_kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("store: remove %s: %w", key, err)
	}
	return nil
}

// Clear removes all four session keys. Idempotent.
func (s *SQLiteStore) Clear() error {
	for _, key := range sessionKeys {
		if err := s.Remove(key); err != nil {
			return err
		}
	}
	return nil
}
