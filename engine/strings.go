package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smallnest/redisqlite/storage"
)

// SetOptions models SET's NX/XX/EX/PX modifiers. Job-queue clients acquire
// locks with SET key val NX PX ttl, so these are load-bearing rather than
// optional compatibility trim.
type SetOptions struct {
	NX       bool
	XX       bool
	ExpireAt *int64 // absolute ms timestamp; nil means "keep existing expiry"
}

func stringLive(ctx context.Context, ex storage.Executor, s *storage.Store, key string, now int64) (bool, sql.NullInt64, error) {
	var expiry sql.NullInt64
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+s.StringTable()+" WHERE key = ? AND "+liveClause, key, now)
	if err := row.Scan(&expiry); err != nil {
		if err == sql.ErrNoRows {
			return false, sql.NullInt64{}, nil
		}
		return false, sql.NullInt64{}, fmt.Errorf("engine: read string: %w", err)
	}
	return true, expiry, nil
}

// doSet upserts key=value, reports whether the write happened (false means
// an NX/XX precondition failed), and preserves the existing expiry unless
// opts.ExpireAt supplies a new one.
func (e *Engine) doSet(ctx context.Context, ex storage.Executor, key, value string, opts SetOptions) (bool, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindString); err != nil {
		return false, err
	}
	now := storage.NowMillis()
	live, existingExpiry, err := stringLive(ctx, ex, e.store, key, now)
	if err != nil {
		return false, err
	}
	if opts.NX && live {
		return false, nil
	}
	if opts.XX && !live {
		return false, nil
	}

	var expiry any
	switch {
	case opts.ExpireAt != nil:
		expiry = *opts.ExpireAt
	case live && existingExpiry.Valid:
		expiry = existingExpiry.Int64
	default:
		expiry = nil
	}

	_, err = ex.ExecContext(ctx,
		"INSERT INTO "+e.store.StringTable()+" (key, value, expiry) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, expiry = excluded.expiry",
		key, value, expiry,
	)
	if err != nil {
		return false, fmt.Errorf("engine: set: %w", err)
	}
	if err := claimType(ctx, ex, e.store, key, storage.KindString); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements the plain SET command, returning "OK".
func (e *Engine) Set(ctx context.Context, key, value string) (string, error) {
	var ok bool
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		ok, err = e.doSet(ctx, ex, key, value, SetOptions{})
		return err
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return "OK", nil
}

// SetWithOptions implements SET with NX/XX/EX/PX modifiers. It returns
// (true, nil) on a successful write, (false, nil) when a precondition
// failed (caller should reply with a RESP nil bulk string).
func (e *Engine) SetWithOptions(ctx context.Context, key, value string, opts SetOptions) (bool, error) {
	var ok bool
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		ok, err = e.doSet(ctx, ex, key, value, opts)
		return err
	})
	return ok, err
}

func (e *Engine) doGet(ctx context.Context, ex storage.Executor, key string) (*string, error) {
	kind, err := liveKind(ctx, ex, e.store, key)
	if err != nil {
		return nil, err
	}
	if kind != storage.KindNone && kind != storage.KindString {
		return nil, ErrWrongType()
	}
	now := storage.NowMillis()
	var value string
	row := ex.QueryRowContext(ctx, "SELECT value FROM "+e.store.StringTable()+" WHERE key = ? AND "+liveClause, key, now)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: get: %w", err)
	}
	return &value, nil
}

// Get implements GET. A nil result with a nil error means the key does not
// exist or has expired.
func (e *Engine) Get(ctx context.Context, key string) (*string, error) {
	return e.doGet(ctx, e.read(), key)
}

// MGet implements MGET: one GET result per key, in argument order.
func (e *Engine) MGet(ctx context.Context, keys []string) ([]*string, error) {
	ex := e.read()
	out := make([]*string, len(keys))
	for i, k := range keys {
		v, err := e.doGet(ctx, ex, k)
		if err != nil {
			// MGET never fails a whole batch over one key's WRONGTYPE;
			// ioredis/node-redis both surface a per-element nil for a
			// type mismatch rather than aborting — mirrored here.
			if _, ok := err.(*CommandError); ok {
				out[i] = nil
				continue
			}
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
