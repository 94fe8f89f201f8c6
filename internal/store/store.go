// Package store persists auth-state records in a single two-column
// key-value table over database/sql. Rows are written with one-statement
// upserts so concurrent writers to the same key resolve at the engine,
// and missing keys are a normal outcome, never an error.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gwillem/wa-authstore/internal/wire"
)

var (
	// ErrUnavailable wraps connectivity and statement failures from the
	// underlying pool. Callers own retry policy; nothing here retries.
	ErrUnavailable = errors.New("store: storage unavailable")

	// ErrSchemaInit indicates table creation failed. Fatal at startup.
	ErrSchemaInit = errors.New("store: schema init failed")
)

// Dialect selects the SQL flavor for upsert and prefix-delete statements.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectMySQL
	DialectPostgres
)

// DialectForDriver maps a database/sql driver name to its dialect.
// Unknown drivers get the SQLite/standard ON CONFLICT flavor.
func DialectForDriver(name string) Dialect {
	switch name {
	case "mysql":
		return DialectMySQL
	case "postgres", "pgx":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

type dialectSQL struct {
	createTable  string
	upsert       string
	get          string
	del          string
	deletePrefix string
}

var dialects = map[Dialect]dialectSQL{
	DialectSQLite: {
		createTable:  `CREATE TABLE IF NOT EXISTS auth_state (session_key TEXT PRIMARY KEY, data TEXT NOT NULL)`,
		upsert:       `INSERT INTO auth_state (session_key, data) VALUES (?, ?) ON CONFLICT (session_key) DO UPDATE SET data = excluded.data`,
		get:          `SELECT data FROM auth_state WHERE session_key = ?`,
		del:          `DELETE FROM auth_state WHERE session_key = ?`,
		deletePrefix: `DELETE FROM auth_state WHERE session_key LIKE ? ESCAPE '\'`,
	},
	DialectMySQL: {
		createTable:  `CREATE TABLE IF NOT EXISTS auth_state (session_key VARCHAR(255) PRIMARY KEY, data TEXT NOT NULL)`,
		upsert:       `INSERT INTO auth_state (session_key, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)`,
		get:          `SELECT data FROM auth_state WHERE session_key = ?`,
		del:          `DELETE FROM auth_state WHERE session_key = ?`,
		deletePrefix: `DELETE FROM auth_state WHERE session_key LIKE ? ESCAPE '\\'`,
	},
	DialectPostgres: {
		createTable:  `CREATE TABLE IF NOT EXISTS auth_state (session_key TEXT PRIMARY KEY, data TEXT NOT NULL)`,
		upsert:       `INSERT INTO auth_state (session_key, data) VALUES ($1, $2) ON CONFLICT (session_key) DO UPDATE SET data = excluded.data`,
		get:          `SELECT data FROM auth_state WHERE session_key = $1`,
		del:          `DELETE FROM auth_state WHERE session_key = $1`,
		deletePrefix: `DELETE FROM auth_state WHERE session_key LIKE $1 ESCAPE '\'`,
	},
}

// Store is the record store over one shared *sql.DB pool. It is safe for
// concurrent use; all serialization goes through the wire codec.
type Store struct {
	db  *sql.DB
	sql dialectSQL
}

// New wraps an existing pool. The pool's lifecycle stays with the caller.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, sql: dialects[dialect]}
}

// EnsureSchema creates the auth_state table if absent. Safe to call
// repeatedly and concurrently; creation is idempotent at the engine.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.sql.createTable); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInit, err)
	}
	return nil
}

// Put serializes v and upserts it under key with a single statement.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	payload, err := wire.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: put %q: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, s.sql.upsert, key, string(payload)); err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Get fetches and deserializes the value under key. The second return is
// false when no row exists; that is not an error. A row that fails to
// deserialize returns wire.ErrCorrupt, never "absent".
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	payload, ok, err := s.getRaw(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := wire.Unmarshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return v, true, nil
}

// GetInto fetches the value under key into a typed destination.
func (s *Store) GetInto(ctx context.Context, key string, dst any) (bool, error) {
	payload, ok, err := s.getRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := wire.Decode(payload, dst); err != nil {
		return false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.sql.get, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return payload, true, nil
}

// Delete removes the row under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.sql.del, key); err != nil {
		return fmt.Errorf("%w: delete %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// DeletePrefix removes every row whose key starts with prefix. LIKE
// wildcards in the prefix are escaped so they match literally.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	if _, err := s.db.ExecContext(ctx, s.sql.deletePrefix, escapeLike(prefix)+"%"); err != nil {
		return fmt.Errorf("%w: delete prefix %q: %v", ErrUnavailable, prefix, err)
	}
	return nil
}
