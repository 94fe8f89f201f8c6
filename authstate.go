// Package waauth stores a WhatsApp-style messaging client's authentication
// state in a relational database: long-lived credentials plus a large,
// dynamically named set of signal key records, multiplexed over one shared
// table and isolated per session.
package waauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/gwillem/wa-authstore/internal/store"
	"github.com/gwillem/wa-authstore/internal/waproto"
	"github.com/gwillem/wa-authstore/internal/wire"
)

// AppStateSyncKeyCategory is the reserved key category whose values decode
// into typed app-state sync key records after retrieval.
const AppStateSyncKeyCategory = "app-state-sync-key"

// ConnConfig describes a server database to build a private pool from.
// Callers using a non-sqlite driver must blank-import it themselves.
type ConnConfig struct {
	Driver   string // "sqlite", "mysql", "postgres"
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Params are appended to the DSN query string (e.g. tls, sslmode).
	Params map[string]string
}

// DSN formats the driver-specific connection string.
func (c ConnConfig) DSN() string {
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	switch c.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.User, c.Password, c.Host, c.Port, c.Database)
		if len(q) > 0 {
			dsn += "?" + q.Encode()
		}
		return dsn
	case "postgres", "pgx":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.Database,
			RawQuery: q.Encode(),
		}
		return u.String()
	default:
		return c.Database // sqlite: the database name is the file path
	}
}

type sessionConfig struct {
	db      *sql.DB
	dialect store.Dialect
	dbPath  string
	conn    *ConnConfig
	logger  *log.Logger
}

// Option configures Open.
type Option func(*sessionConfig)

// WithDB adopts an existing, caller-owned connection pool. Close will not
// close it; the pool may be shared across many sessions.
func WithDB(db *sql.DB, dialect store.Dialect) Option {
	return func(c *sessionConfig) {
		c.db = db
		c.dialect = dialect
	}
}

// WithDBPath opens a private sqlite pool at the given path. The session
// owns it and Close tears it down.
func WithDBPath(path string) Option {
	return func(c *sessionConfig) { c.dbPath = path }
}

// WithConnConfig opens a private pool from connection parameters. The
// session owns it and Close tears it down.
func WithConnConfig(cfg ConnConfig) Option {
	return func(c *sessionConfig) { c.conn = &cfg }
}

// WithLogger sets the logger for verbose output.
// If not set, logging is disabled.
func WithLogger(l *log.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// DefaultDataDir returns the default data directory for session databases.
// Uses $XDG_DATA_HOME/wa-authstore, falling back to ~/.local/share/wa-authstore.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "wa-authstore")
}

// Session is one logical identity's auth state bound to the store.
// Safe for concurrent use; credential mutation happens through the
// external client and is persisted only on Save.
type Session struct {
	id     string
	db     *sql.DB
	ownsDB bool
	store  *store.Store
	logger *log.Logger

	mu        sync.Mutex
	creds     *Credentials
	coldStart bool
}

// Open binds a session to the store: ensures the schema exists, then
// resumes stored credentials or bootstraps fresh ones. Freshly generated
// credentials stay in memory until Save — the caller decides when to
// persist. A failed Open never returns a partially initialized session.
func Open(ctx context.Context, sessionID string, opts ...Option) (*Session, error) {
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	var cfg sessionConfig
	for _, o := range opts {
		o(&cfg)
	}

	db, dialect, owns, err := cfg.openDB()
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     sessionID,
		db:     db,
		ownsDB: owns,
		store:  store.New(db, dialect),
		logger: cfg.logger,
	}

	if err := s.store.EnsureSchema(ctx); err != nil {
		s.closeOwned()
		return nil, err
	}

	var creds Credentials
	found, err := s.store.GetInto(ctx, store.StorageKey(sessionID, store.CredsKey), &creds)
	if err != nil {
		s.closeOwned()
		return nil, err
	}
	if found {
		s.creds = &creds
		logf(s.logger, "session %s: resumed stored credentials", sessionID)
	} else {
		fresh, err := NewCredentials()
		if err != nil {
			s.closeOwned()
			return nil, err
		}
		s.creds = fresh
		s.coldStart = true
		logf(s.logger, "session %s: cold start, credentials held in memory until Save", sessionID)
	}
	return s, nil
}

func (c *sessionConfig) openDB() (*sql.DB, store.Dialect, bool, error) {
	switch {
	case c.db != nil:
		return c.db, c.dialect, false, nil
	case c.conn != nil:
		db, err := sql.Open(c.conn.Driver, c.conn.DSN())
		if err != nil {
			return nil, 0, false, fmt.Errorf("waauth: open %s pool: %w", c.conn.Driver, err)
		}
		return db, store.DialectForDriver(c.conn.Driver), true, nil
	default:
		path := c.dbPath
		if path == "" {
			path = filepath.Join(DefaultDataDir(), "authstate.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, 0, false, fmt.Errorf("waauth: create data dir: %w", err)
		}
		// WAL for concurrent readers; busy_timeout on every pooled
		// connection so writers from other processes wait instead of
		// failing with SQLITE_BUSY.
		db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)")
		if err != nil {
			return nil, 0, false, fmt.Errorf("waauth: open db: %w", err)
		}
		// sqlite allows one writer at a time. A single pooled connection
		// turns in-process write contention into queueing, so a large
		// batched Set fan-out cannot trip over its own siblings.
		db.SetMaxOpenConns(1)
		return db, store.DialectSQLite, true, nil
	}
}

func (s *Session) closeOwned() {
	if s.ownsDB {
		s.db.Close()
	}
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Creds returns the session's in-memory credentials. The external client
// mutates these during pairing and registration; Save persists whatever
// state they hold at that moment.
func (s *Session) Creds() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// ColdStart reports whether Open bootstrapped fresh credentials instead of
// resuming stored ones.
func (s *Session) ColdStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coldStart
}

// Keys returns the typed key-category store bound to this session.
func (s *Session) Keys() *KeyStore {
	return &KeyStore{s: s}
}

// Save persists the current in-memory credentials, including any mutation
// the external client performed on them.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	if err := s.store.Put(ctx, store.StorageKey(s.id, store.CredsKey), creds); err != nil {
		return err
	}
	s.mu.Lock()
	s.coldStart = false
	s.mu.Unlock()
	logf(s.logger, "session %s: credentials saved", s.id)
	return nil
}

// DeleteSession removes every stored record of this session. Irreversible;
// rows of other sessions are untouched.
func (s *Session) DeleteSession(ctx context.Context) error {
	if err := s.store.DeletePrefix(ctx, store.SessionPrefix(s.id)); err != nil {
		return err
	}
	logf(s.logger, "session %s: deleted", s.id)
	return nil
}

// Close releases the connection pool if this session owns it. Adopted
// pools (WithDB) stay open for their owner.
func (s *Session) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// KeyStore reads and writes key-category records for one session.
type KeyStore struct {
	s *Session
}

// Get reads the values for the given ids of one category. The result maps
// id to value for every id with stored data; absent ids are omitted. For
// the app-state-sync-key category the raw record bytes are decoded into
// *waproto.AppStateSyncKeyData; an empty record counts as "no data", and
// a present record of any other shape is a wire.ErrCorrupt error.
func (k *KeyStore) Get(ctx context.Context, category string, ids []string) (map[string]any, error) {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		v, ok, err := k.s.store.Get(ctx, store.StorageKey(k.s.id, store.KeyName(category, id)))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if category == AppStateSyncKeyCategory {
			raw, isRaw := v.([]byte)
			if !isRaw {
				// A present row that is not a buffer record must not
				// pass for an absent key.
				return nil, fmt.Errorf("waauth: app state sync key %q: %w: not a buffer record", id, wire.ErrCorrupt)
			}
			if len(raw) == 0 {
				continue
			}
			rec, err := waproto.UnmarshalAppStateSyncKeyData(raw)
			if err != nil {
				return nil, fmt.Errorf("waauth: decode app state sync key %q: %w", id, err)
			}
			v = rec
		}
		out[id] = v
	}
	return out, nil
}

// Set writes every (category, id, value) triple: non-nil values are
// upserted, nil values are deleted. Keys are processed concurrently and
// independently; a failing key neither blocks nor corrupts its siblings,
// and every failure surfaces in the joined error. Two batches racing on
// one key resolve by the engine's per-key upsert atomicity, last writer
// wins.
func (k *KeyStore) Set(ctx context.Context, data map[string]map[string]any) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for category, entries := range data {
		for id, value := range entries {
			key := store.StorageKey(k.s.id, store.KeyName(category, id))
			if rec, ok := value.(*waproto.AppStateSyncKeyData); ok {
				if rec == nil {
					value = nil
				} else {
					// Store the opaque wire bytes, symmetric with Get's decode.
					value = wire.Buffer(rec.Marshal())
				}
			}
			wg.Add(1)
			go func(key string, value any) {
				defer wg.Done()
				var err error
				if value == nil {
					err = k.s.store.Delete(ctx, key)
				} else {
					err = k.s.store.Put(ctx, key, value)
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(key, value)
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}
