package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smallnest/redisqlite/storage"
)

func listLen(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (int, error) {
	var n int
	now := storage.NowMillis()
	row := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.ListTable()+" WHERE key = ? AND "+liveClause, key, now)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("engine: list length: %w", err)
	}
	return n, nil
}

// listExpiry returns the expiry currently shared by key's rows (NULL if
// none), so newly pushed elements preserve a key-wide TTL rather than
// silently becoming permanent.
func listExpiry(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (sql.NullInt64, error) {
	var expiry sql.NullInt64
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+s.ListTable()+" WHERE key = ? LIMIT 1", key)
	if err := row.Scan(&expiry); err != nil {
		if err == sql.ErrNoRows {
			return sql.NullInt64{}, nil
		}
		return sql.NullInt64{}, fmt.Errorf("engine: list expiry: %w", err)
	}
	return expiry, nil
}

func (e *Engine) doLPush(ctx context.Context, ex storage.Executor, key string, values []string) (int, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return 0, err
	}
	if err := purgeExpired(ctx, ex, e.store.ListTable(), key); err != nil {
		return 0, err
	}
	n := len(values)
	length, err := listLen(ctx, ex, e.store, key)
	if err != nil {
		return 0, err
	}
	expiry, err := listExpiry(ctx, ex, e.store, key)
	if err != nil {
		return 0, err
	}

	if length > 0 {
		// Shift the existing rows up by n via a negative staging pass (as
		// doLPop does), so no intermediate state collides with the (key, idx)
		// primary key, regardless of the order SQLite visits rows in.
		if _, err := ex.ExecContext(ctx, "UPDATE "+e.store.ListTable()+" SET idx = -idx - 1 WHERE key = ? AND idx >= 0", key); err != nil {
			return 0, fmt.Errorf("engine: lpush shift stage: %w", err)
		}
		if _, err := ex.ExecContext(ctx, "UPDATE "+e.store.ListTable()+" SET idx = -idx - 1 + ? WHERE key = ? AND idx < 0", n, key); err != nil {
			return 0, fmt.Errorf("engine: lpush shift: %w", err)
		}
	}

	// Last argument becomes the new head: values[i] lands at index n-1-i.
	for i, v := range values {
		idx := n - 1 - i
		var exp any
		if expiry.Valid {
			exp = expiry.Int64
		}
		if _, err := ex.ExecContext(ctx,
			"INSERT INTO "+e.store.ListTable()+" (key, idx, value, expiry) VALUES (?, ?, ?, ?)",
			key, idx, v, exp,
		); err != nil {
			return 0, fmt.Errorf("engine: lpush insert: %w", err)
		}
	}
	if err := claimType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return 0, err
	}
	return length + n, nil
}

func (e *Engine) doRPush(ctx context.Context, ex storage.Executor, key string, values []string) (int, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return 0, err
	}
	if err := purgeExpired(ctx, ex, e.store.ListTable(), key); err != nil {
		return 0, err
	}
	length, err := listLen(ctx, ex, e.store, key)
	if err != nil {
		return 0, err
	}
	expiry, err := listExpiry(ctx, ex, e.store, key)
	if err != nil {
		return 0, err
	}
	for i, v := range values {
		idx := length + i
		var exp any
		if expiry.Valid {
			exp = expiry.Int64
		}
		if _, err := ex.ExecContext(ctx,
			"INSERT INTO "+e.store.ListTable()+" (key, idx, value, expiry) VALUES (?, ?, ?, ?)",
			key, idx, v, exp,
		); err != nil {
			return 0, fmt.Errorf("engine: rpush insert: %w", err)
		}
	}
	if err := claimType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return 0, err
	}
	return length + len(values), nil
}

// LPush implements LPUSH. Pushing notifies any BRPOPLPUSH waiters blocked
// on key as a source.
func (e *Engine) LPush(ctx context.Context, key string, values ...string) (int, error) {
	var n int
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		n, err = e.doLPush(ctx, ex, key, values)
		return err
	})
	if err == nil {
		e.blocking.notify(key)
	}
	return n, err
}

// RPush implements RPUSH.
func (e *Engine) RPush(ctx context.Context, key string, values ...string) (int, error) {
	var n int
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		n, err = e.doRPush(ctx, ex, key, values)
		return err
	})
	if err == nil {
		e.blocking.notify(key)
	}
	return n, err
}

func (e *Engine) doLPop(ctx context.Context, ex storage.Executor, key string) (*string, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return nil, err
	}
	var value string
	now := storage.NowMillis()
	row := ex.QueryRowContext(ctx, "SELECT value FROM "+e.store.ListTable()+" WHERE key = ? AND "+liveClause+" ORDER BY idx ASC LIMIT 1", key, now)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: lpop read: %w", err)
	}
	if _, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.ListTable()+" WHERE key = ? AND idx = 0", key); err != nil {
		return nil, fmt.Errorf("engine: lpop delete: %w", err)
	}
	// Renumber the remaining rows down by one. Done via a negative staging
	// pass so the intermediate state never collides with the (key, idx)
	// primary key, regardless of the order SQLite visits rows in.
	if _, err := ex.ExecContext(ctx, "UPDATE "+e.store.ListTable()+" SET idx = -idx WHERE key = ? AND idx >= 1", key); err != nil {
		return nil, fmt.Errorf("engine: lpop renumber stage: %w", err)
	}
	if _, err := ex.ExecContext(ctx, "UPDATE "+e.store.ListTable()+" SET idx = -idx - 1 WHERE key = ? AND idx < 0", key); err != nil {
		return nil, fmt.Errorf("engine: lpop renumber: %w", err)
	}
	remaining, err := listLen(ctx, ex, e.store, key)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := releaseType(ctx, ex, e.store, key); err != nil {
			return nil, err
		}
	}
	return &value, nil
}

// LPop implements LPOP.
func (e *Engine) LPop(ctx context.Context, key string) (*string, error) {
	var v *string
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		v, err = e.doLPop(ctx, ex, key)
		return err
	})
	return v, err
}

func (e *Engine) doRPop(ctx context.Context, ex storage.Executor, key string) (*string, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return nil, err
	}
	var value string
	var idx int
	now := storage.NowMillis()
	row := ex.QueryRowContext(ctx, "SELECT idx, value FROM "+e.store.ListTable()+" WHERE key = ? AND "+liveClause+" ORDER BY idx DESC LIMIT 1", key, now)
	if err := row.Scan(&idx, &value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: rpop read: %w", err)
	}
	if _, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.ListTable()+" WHERE key = ? AND idx = ?", key, idx); err != nil {
		return nil, fmt.Errorf("engine: rpop delete: %w", err)
	}
	remaining, err := listLen(ctx, ex, e.store, key)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := releaseType(ctx, ex, e.store, key); err != nil {
			return nil, err
		}
	}
	return &value, nil
}

// RPop implements RPOP. Tail removal needs no renumbering.
func (e *Engine) RPop(ctx context.Context, key string) (*string, error) {
	var v *string
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		v, err = e.doRPop(ctx, ex, key)
		return err
	})
	return v, err
}

func clampRange(start, stop, length int) (int, int, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}

// LRange implements LRANGE with Redis negative-index semantics.
func (e *Engine) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	ex := e.read()
	if err := requireType(ctx, ex, e.store, key, storage.KindList); err != nil {
		return nil, err
	}
	length, err := listLen(ctx, ex, e.store, key)
	if err != nil {
		return nil, err
	}
	lo, hi, ok := clampRange(start, stop, length)
	if !ok {
		return []string{}, nil
	}
	now := storage.NowMillis()
	rows, err := ex.QueryContext(ctx,
		"SELECT value FROM "+e.store.ListTable()+" WHERE key = ? AND idx BETWEEN ? AND ? AND "+liveClause+" ORDER BY idx ASC",
		key, lo, hi, now,
	)
	if err != nil {
		return nil, fmt.Errorf("engine: lrange: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("engine: lrange scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (e *Engine) doRPopLPush(ctx context.Context, ex storage.Executor, src, dst string) (*string, error) {
	value, err := e.doRPop(ctx, ex, src)
	if err != nil || value == nil {
		return value, err
	}
	if err := requireType(ctx, ex, e.store, dst, storage.KindList); err != nil {
		return nil, err
	}
	if _, err := e.doLPush(ctx, ex, dst, []string{*value}); err != nil {
		return nil, err
	}
	return value, nil
}

// RPopLPush implements RPOPLPUSH atomically: pop the tail of src, push it
// as the new head of dst, in one transaction.
func (e *Engine) RPopLPush(ctx context.Context, src, dst string) (*string, error) {
	var v *string
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		v, err = e.doRPopLPush(ctx, ex, src, dst)
		return err
	})
	if err == nil && v != nil {
		e.blocking.notify(dst)
	}
	return v, err
}
