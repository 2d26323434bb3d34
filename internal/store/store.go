package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cora/internal/kv"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on kv_entries(scope, seq)
const currentSchemaVersion = 1

// Store provides durable storage for ritual state.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Visitor is a registered visitor scope.
type Visitor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Scope returns a kv.Store whose keys live under the named scope.
func (s *Store) Scope(name string) *Scoped {
	return &Scoped{store: s, scope: name}
}

// Keys lists the keys set in scope, in binary key order.
func (s *Store) Keys(ctx context.Context, scope string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv_entries
		WHERE scope = ?
		ORDER BY key ASC COLLATE BINARY
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("list keys in %q: %w", scope, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys in %q: %w", scope, err)
	}
	return keys, nil
}

// RegisterVisitor records a visitor ID. Registering the same ID twice keeps
// the first creation time.
func (s *Store) RegisterVisitor(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return fmt.Errorf("register visitor: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("register visitor %q: %w", id, err)
	}
	return nil
}

// Visitors lists registered visitors, oldest first.
func (s *Store) Visitors(ctx context.Context) ([]Visitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at FROM visitors
		ORDER BY created_at ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	visitors := []Visitor{}
	for rows.Next() {
		var v Visitor
		if err := rows.Scan(&v.ID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	return visitors, nil
}

// Scoped is a kv.Store view of one scope.
type Scoped struct {
	store *Store
	scope string
}

var _ kv.Store = (*Scoped)(nil)

// Name returns the scope name.
func (sc *Scoped) Name() string {
	return sc.scope
}

// Get returns the value under key, or kv.ErrNotFound.
func (sc *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := sc.store.db.QueryRowContext(ctx, `
		SELECT value FROM kv_entries WHERE scope = ? AND key = ?
	`, sc.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", sc.scope, key, err)
	}
	return value, nil
}

// Set replaces the value under key. The last write wins.
func (sc *Scoped) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := sc.store.db.ExecContext(ctx, `
		INSERT INTO kv_entries (scope, key, value, seq, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM kv_entries), ?)
		ON CONFLICT(scope, key) DO UPDATE SET
			value = excluded.value,
			seq = excluded.seq,
			updated_at = excluded.updated_at
	`, sc.scope, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", sc.scope, key, err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes write order within a scope.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_kv_scope_seq
		ON kv_entries(scope, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
