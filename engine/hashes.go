package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smallnest/redisqlite/storage"
)

func hashExpiry(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (sql.NullInt64, error) {
	var expiry sql.NullInt64
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+s.HashTable()+" WHERE key = ? LIMIT 1", key)
	if err := row.Scan(&expiry); err != nil {
		if err == sql.ErrNoRows {
			return sql.NullInt64{}, nil
		}
		return sql.NullInt64{}, fmt.Errorf("engine: hash expiry: %w", err)
	}
	return expiry, nil
}

func (e *Engine) doHSetField(ctx context.Context, ex storage.Executor, key, field, value string) (bool, error) {
	if err := requireType(ctx, ex, e.store, key, storage.KindHash); err != nil {
		return false, err
	}
	if err := purgeExpired(ctx, ex, e.store.HashTable(), key); err != nil {
		return false, err
	}
	var existing string
	row := ex.QueryRowContext(ctx, "SELECT value FROM "+e.store.HashTable()+" WHERE key = ? AND field = ?", key, field)
	isNew := false
	switch err := row.Scan(&existing); err {
	case sql.ErrNoRows:
		isNew = true
	case nil:
		isNew = false
	default:
		return false, fmt.Errorf("engine: hset read: %w", err)
	}

	expiry, err := hashExpiry(ctx, ex, e.store, key)
	if err != nil {
		return false, err
	}
	var exp any
	if expiry.Valid {
		exp = expiry.Int64
	}
	_, err = ex.ExecContext(ctx,
		"INSERT INTO "+e.store.HashTable()+" (key, field, value, expiry) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(key, field) DO UPDATE SET value = excluded.value",
		key, field, value, exp,
	)
	if err != nil {
		return false, fmt.Errorf("engine: hset write: %w", err)
	}
	if err := claimType(ctx, ex, e.store, key, storage.KindHash); err != nil {
		return false, err
	}
	return isNew, nil
}

// HSet implements single-field HSET, returning 1 if field was newly added,
// 0 if an existing field was replaced.
func (e *Engine) HSet(ctx context.Context, key, field, value string) (int, error) {
	var isNew bool
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		var err error
		isNew, err = e.doHSetField(ctx, ex, key, field, value)
		return err
	})
	if err != nil {
		return 0, err
	}
	if isNew {
		return 1, nil
	}
	return 0, nil
}

// HSetMulti implements the multi-field HSET variant, returning the number
// of fields newly added across the batch.
func (e *Engine) HSetMulti(ctx context.Context, key string, fields []string, values []string) (int, error) {
	if len(fields) != len(values) {
		return 0, ErrGeneric("wrong number of arguments for HSET")
	}
	added := 0
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		for i := range fields {
			isNew, err := e.doHSetField(ctx, ex, key, fields[i], values[i])
			if err != nil {
				return err
			}
			if isNew {
				added++
			}
		}
		return nil
	})
	return added, err
}

// HMSet implements HMSET, returning "OK" on success.
func (e *Engine) HMSet(ctx context.Context, key string, fields []string, values []string) (string, error) {
	if _, err := e.HSetMulti(ctx, key, fields, values); err != nil {
		return "", err
	}
	return "OK", nil
}

func (e *Engine) doHGet(ctx context.Context, ex storage.Executor, key, field string) (*string, error) {
	kind, err := liveKind(ctx, ex, e.store, key)
	if err != nil {
		return nil, err
	}
	if kind != storage.KindNone && kind != storage.KindHash {
		return nil, ErrWrongType()
	}
	now := storage.NowMillis()
	var value string
	row := ex.QueryRowContext(ctx,
		"SELECT value FROM "+e.store.HashTable()+" WHERE key = ? AND field = ? AND "+liveClause,
		key, field, now,
	)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: hget: %w", err)
	}
	return &value, nil
}

// HGet implements HGET.
func (e *Engine) HGet(ctx context.Context, key, field string) (*string, error) {
	return e.doHGet(ctx, e.read(), key, field)
}

// HMGet implements HMGET, preserving argument order.
func (e *Engine) HMGet(ctx context.Context, key string, fields []string) ([]*string, error) {
	ex := e.read()
	out := make([]*string, len(fields))
	for i, f := range fields {
		v, err := e.doHGet(ctx, ex, key, f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// HDel implements HDEL, returning the number of fields actually deleted per
// the statements' affected-rows. Asking to delete an absent field
// contributes nothing to the count.
func (e *Engine) HDel(ctx context.Context, key string, fields ...string) (int, error) {
	var deleted int
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		if err := requireType(ctx, ex, e.store, key, storage.KindHash); err != nil {
			return err
		}
		for _, f := range fields {
			res, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.HashTable()+" WHERE key = ? AND field = ?", key, f)
			if err != nil {
				return fmt.Errorf("engine: hdel: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("engine: hdel rows affected: %w", err)
			}
			deleted += int(n)
		}
		var remaining int
		row := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.store.HashTable()+" WHERE key = ?", key)
		if err := row.Scan(&remaining); err != nil {
			return fmt.Errorf("engine: hdel count: %w", err)
		}
		if remaining == 0 {
			return releaseType(ctx, ex, e.store, key)
		}
		return nil
	})
	return deleted, err
}
