// Package engine implements the Redis command surface on top of the storage
// package's four type-stores and key_type sidecar. Every
// command has two entry points: a typed, public method (Set, LPush, ...)
// used by the in-process facades, and a commandTable handler (commands.go)
// that Dispatch and the transaction controller's EXEC loop call with either
// a fresh write transaction or the batch's shared one. Where an unexported
// "with executor" helper exists (doSet, doGet, doLPush, doHSetField, ...),
// both entry points go through it; the other handlers (DEL, EXPIRE, TTL,
// HDEL, SADD, SREM, ...) repeat their public method's logic against the
// executor they are given.
package engine

import (
	"context"

	"github.com/smallnest/redisqlite/log"
	"github.com/smallnest/redisqlite/storage"
)

// liveClause is the WHERE fragment every read must apply in addition to a
// key/field/member match, so a row past its expiry but not yet reaped is
// never served as live. This is a correctness requirement, not a fast path:
// the reaper only sweeps once a second.
const liveClause = "(expiry IS NULL OR expiry > ?)"

// Engine implements the Redis command set against a storage.Store.
type Engine struct {
	store    *storage.Store
	logger   log.Logger
	password string
	blocking *blockingCoordinator
}

// New creates an Engine. An empty password disables the auth gate.
func New(store *storage.Store, password string, logger log.Logger) *Engine {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Engine{
		store:    store,
		logger:   logger,
		password: password,
		blocking: newBlockingCoordinator(),
	}
}

// RequiresAuth reports whether a password is configured.
func (e *Engine) RequiresAuth() bool { return e.password != "" }

// Auth implements the AUTH command.
func (e *Engine) Auth(password string) (string, error) {
	if e.password == "" {
		return "", ErrGeneric("Client sent AUTH, but no password is set")
	}
	if password != e.password {
		return "", ErrGeneric("invalid password")
	}
	return "OK", nil
}

func (e *Engine) withWrite(ctx context.Context, fn func(ex storage.Executor) error) error {
	return e.store.WithWrite(ctx, fn)
}

func (e *Engine) read() storage.Executor {
	return e.store.DB()
}
