// Package storage owns the SQLite connection backing a redisqlite instance
// and exposes the five tables ("string", "hash", "list", "set", and the
// key_type sidecar) that the command engine maps the Redis data model onto.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/smallnest/redisqlite/log"
)

// Kind identifies which of the four type-stores a key currently belongs to,
// per the sidecar key_type table.
type Kind string

const (
	KindNone   Kind = ""
	KindString Kind = "string"
	KindHash   Kind = "hash"
	KindList   Kind = "list"
	KindSet    Kind = "set"
)

// Executor is satisfied by both *sql.DB and *sql.Tx, letting every storage
// accessor run either standalone or inside an open transaction without a
// trailing optional transaction argument.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures a Store.
type Options struct {
	// Path is the SQLite DSN or file path. ":memory:" opens an in-memory
	// database. Defaults to ":memory:".
	Path string
	// Prefix names the five tables, e.g. "redis_" -> "redis_string_store".
	// When empty, the REDIS_SQLITE_PREFIX environment variable applies,
	// then the default "redis_". Distinct prefixes let several logical
	// databases share one file.
	Prefix string
	Logger log.Logger
}

// Store owns the *sql.DB and serializes writers through a weighted
// semaphore, since SQLite allows only one writer transaction at a time.
type Store struct {
	db       *sql.DB
	prefix   string
	writeSem *semaphore.Weighted
	logger   log.Logger
}

// Open creates (or attaches to) the backing SQLite database and ensures the
// schema exists.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = os.Getenv("REDIS_SQLITE_PREFIX")
	}
	if prefix == "" {
		prefix = "redis_"
	}
	logger := opts.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	// SQLite only tolerates one writer connection; a single pooled
	// connection keeps database/sql's pool from handing out a second one
	// concurrently with an open write transaction.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		prefix:   prefix,
		writeSem: semaphore.NewWeighted(1),
		logger:   logger,
	}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) table(name string) string {
	return s.prefix + name
}

// StringTable, HashTable, ListTable, SetTable, and KeyTypeTable return the
// fully-qualified (prefixed) table names, for accessors and the reaper.
func (s *Store) StringTable() string  { return s.table("string_store") }
func (s *Store) HashTable() string    { return s.table("hash_store") }
func (s *Store) ListTable() string    { return s.table("list_store") }
func (s *Store) SetTable() string     { return s.table("set_store") }
func (s *Store) KeyTypeTable() string { return s.table("key_type") }

func (s *Store) initSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expiry INTEGER
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_expiry ON %[1]s (expiry);

CREATE TABLE IF NOT EXISTS %[2]s (
	key TEXT NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL,
	expiry INTEGER,
	PRIMARY KEY (key, field)
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_expiry ON %[2]s (expiry);

CREATE TABLE IF NOT EXISTS %[3]s (
	key TEXT NOT NULL,
	idx INTEGER NOT NULL,
	value TEXT NOT NULL,
	expiry INTEGER,
	PRIMARY KEY (key, idx)
);
CREATE INDEX IF NOT EXISTS idx_%[3]s_expiry ON %[3]s (expiry);

CREATE TABLE IF NOT EXISTS %[4]s (
	key TEXT NOT NULL,
	member TEXT NOT NULL,
	expiry INTEGER,
	PRIMARY KEY (key, member)
);
CREATE INDEX IF NOT EXISTS idx_%[4]s_expiry ON %[4]s (expiry);

CREATE TABLE IF NOT EXISTS %[5]s (
	key TEXT PRIMARY KEY,
	kind TEXT NOT NULL
);
`, s.StringTable(), s.HashTable(), s.ListTable(), s.SetTable(), s.KeyTypeTable())

	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

// DB returns the underlying *sql.DB for read-only access; reads do not
// contend for the write semaphore.
func (s *Store) DB() Executor { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx wraps an open write transaction and the semaphore slot that guards it.
type Tx struct {
	tx       *sql.Tx
	release  func()
	finished bool
}

// Executor exposes the transaction as a storage.Executor.
func (t *Tx) Executor() Executor { return t.tx }

// Commit commits the transaction and releases the writer slot.
func (t *Tx) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	err := t.tx.Commit()
	t.release()
	return err
}

// Rollback rolls back the transaction and releases the writer slot. It is
// safe to call after Commit (a no-op).
func (t *Tx) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	err := t.tx.Rollback()
	t.release()
	return err
}

// BeginWrite acquires the single-writer slot and opens a SQL transaction.
// Callers must Commit or Rollback exactly once.
func (s *Store) BeginWrite(ctx context.Context) (*Tx, error) {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("storage: acquire writer: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writeSem.Release(1)
		return nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	return &Tx{tx: tx, release: func() { s.writeSem.Release(1) }}, nil
}

// WithWrite runs fn inside a single write transaction, committing on success
// and rolling back if fn returns an error. Any engine operation invoked
// outside of MULTI/EXEC creates and commits its own transaction this way.
func (s *Store) WithWrite(ctx context.Context, fn func(ex Executor) error) error {
	tx, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx.Executor()); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// NowMillis returns the current time as a millisecond Unix timestamp, the
// unit expiry columns are stored in.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
