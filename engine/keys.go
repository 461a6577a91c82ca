package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/smallnest/redisqlite/storage"
)

func tableForKind(s *storage.Store, kind storage.Kind) string {
	switch kind {
	case storage.KindString:
		return s.StringTable()
	case storage.KindHash:
		return s.HashTable()
	case storage.KindList:
		return s.ListTable()
	case storage.KindSet:
		return s.SetTable()
	}
	return ""
}

// keyExistsLive reports whether key owns at least one row, in its owning
// store, that has not yet expired. A key whose rows are all past expiry is
// treated as nonexistent even before the reaper sweeps them.
func keyExistsLive(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (storage.Kind, bool, error) {
	kind, err := liveKind(ctx, ex, s, key)
	return kind, kind != storage.KindNone, err
}

// Del implements DEL: removes all rows for each key across whichever store
// owns it, returning the count of keys that had at least one row removed.
func (e *Engine) Del(ctx context.Context, keys []string) (int, error) {
	removed := 0
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		for _, key := range keys {
			kind, err := kindOf(ctx, ex, e.store, key)
			if err != nil {
				return err
			}
			if kind == storage.KindNone {
				continue
			}
			table := tableForKind(e.store, kind)
			res, err := ex.ExecContext(ctx, "DELETE FROM "+table+" WHERE key = ?", key)
			if err != nil {
				return fmt.Errorf("engine: del: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("engine: del rows affected: %w", err)
			}
			if n > 0 {
				removed++
			}
			if err := releaseType(ctx, ex, e.store, key); err != nil {
				return err
			}
		}
		return nil
	})
	return removed, err
}

// Exists implements EXISTS: the sum of 1 per key that is live in any store.
func (e *Engine) Exists(ctx context.Context, keys []string) (int, error) {
	ex := e.read()
	count := 0
	for _, key := range keys {
		_, live, err := keyExistsLive(ctx, ex, e.store, key)
		if err != nil {
			return 0, err
		}
		if live {
			count++
		}
	}
	return count, nil
}

// Expire implements EXPIRE: sets expiry on every row of key's owning store.
func (e *Engine) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	var updated bool
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		kind, live, err := keyExistsLive(ctx, ex, e.store, key)
		if err != nil {
			return err
		}
		if !live {
			updated = false
			return nil
		}
		table := tableForKind(e.store, kind)
		expiry := storage.NowMillis() + seconds*1000
		if _, err := ex.ExecContext(ctx, "UPDATE "+table+" SET expiry = ? WHERE key = ?", expiry, key); err != nil {
			return fmt.Errorf("engine: expire: %w", err)
		}
		updated = true
		return nil
	})
	return updated, err
}

// TTL implements TTL: -2 if the key does not exist, -1 if it has no expiry,
// else the remaining seconds rounded up.
func (e *Engine) TTL(ctx context.Context, key string) (int, error) {
	ex := e.read()
	kind, live, err := keyExistsLive(ctx, ex, e.store, key)
	if err != nil {
		return 0, err
	}
	if !live {
		return -2, nil
	}
	table := tableForKind(e.store, kind)
	now := storage.NowMillis()
	var expiry sql.NullInt64
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+table+" WHERE key = ? AND "+liveClause+" LIMIT 1", key, now)
	if err := row.Scan(&expiry); err != nil {
		return 0, fmt.Errorf("engine: ttl: %w", err)
	}
	if !expiry.Valid {
		return -1, nil
	}
	remainingMs := expiry.Int64 - now
	return int(math.Ceil(float64(remainingMs) / 1000.0)), nil
}

// Flush implements FLUSHDB/FLUSHALL: both map onto the same operation since
// this engine has no separate-database concept, just one shared namespace
// per table prefix.
func (e *Engine) Flush(ctx context.Context) (string, error) {
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		for _, table := range []string{
			e.store.StringTable(), e.store.HashTable(), e.store.ListTable(),
			e.store.SetTable(), e.store.KeyTypeTable(),
		} {
			if _, err := ex.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("engine: flush %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return "OK", nil
}

// Keys implements KEYS: glob-style matching (*, ?, [set]) over every live
// key across all four stores.
func (e *Engine) Keys(ctx context.Context, pattern string) ([]string, error) {
	return e.doKeys(ctx, e.read(), pattern)
}

func (e *Engine) doKeys(ctx context.Context, ex storage.Executor, pattern string) ([]string, error) {
	rows, err := ex.QueryContext(ctx, "SELECT key FROM "+e.store.KeyTypeTable())
	if err != nil {
		return nil, fmt.Errorf("engine: keys: %w", err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("engine: keys scan: %w", err)
		}
		candidates = append(candidates, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := []string{}
	for _, k := range candidates {
		if !globMatch(pattern, k) {
			continue
		}
		_, live, err := keyExistsLive(ctx, ex, e.store, k)
		if err != nil {
			return nil, err
		}
		if live {
			out = append(out, k)
		}
	}
	return out, nil
}
