package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smallnest/redisqlite/storage"
)

func setExpiry(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (sql.NullInt64, error) {
	var expiry sql.NullInt64
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+s.SetTable()+" WHERE key = ? LIMIT 1", key)
	if err := row.Scan(&expiry); err != nil {
		if err == sql.ErrNoRows {
			return sql.NullInt64{}, nil
		}
		return sql.NullInt64{}, fmt.Errorf("engine: set expiry: %w", err)
	}
	return expiry, nil
}

// SAdd implements SADD, returning the number of members newly added per the
// statements' affected-rows. Duplicates contribute nothing to the count.
func (e *Engine) SAdd(ctx context.Context, key string, members ...string) (int, error) {
	added := 0
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
			return err
		}
		if err := purgeExpired(ctx, ex, e.store.SetTable(), key); err != nil {
			return err
		}
		expiry, err := setExpiry(ctx, ex, e.store, key)
		if err != nil {
			return err
		}
		var exp any
		if expiry.Valid {
			exp = expiry.Int64
		}
		for _, m := range members {
			res, err := ex.ExecContext(ctx,
				"INSERT INTO "+e.store.SetTable()+" (key, member, expiry) VALUES (?, ?, ?) ON CONFLICT(key, member) DO NOTHING",
				key, m, exp,
			)
			if err != nil {
				return fmt.Errorf("engine: sadd: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("engine: sadd rows affected: %w", err)
			}
			added += int(n)
		}
		if added > 0 {
			return claimType(ctx, ex, e.store, key, storage.KindSet)
		}
		return nil
	})
	return added, err
}

// SRem implements SREM, returning the number of members actually removed.
func (e *Engine) SRem(ctx context.Context, key string, members ...string) (int, error) {
	removed := 0
	err := e.withWrite(ctx, func(ex storage.Executor) error {
		if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
			return err
		}
		for _, m := range members {
			res, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.SetTable()+" WHERE key = ? AND member = ?", key, m)
			if err != nil {
				return fmt.Errorf("engine: srem: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("engine: srem rows affected: %w", err)
			}
			removed += int(n)
		}
		var remaining int
		row := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.store.SetTable()+" WHERE key = ?", key)
		if err := row.Scan(&remaining); err != nil {
			return fmt.Errorf("engine: srem count: %w", err)
		}
		if remaining == 0 {
			return releaseType(ctx, ex, e.store, key)
		}
		return nil
	})
	return removed, err
}

// SIsMember implements SISMEMBER.
func (e *Engine) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ex := e.read()
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return false, err
	}
	now := storage.NowMillis()
	var dummy int
	row := ex.QueryRowContext(ctx,
		"SELECT 1 FROM "+e.store.SetTable()+" WHERE key = ? AND member = ? AND "+liveClause,
		key, member, now,
	)
	switch err := row.Scan(&dummy); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("engine: sismember: %w", err)
	}
}

// SMembers implements SMEMBERS, returning live members ordered ascending.
func (e *Engine) SMembers(ctx context.Context, key string) ([]string, error) {
	ex := e.read()
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return nil, err
	}
	now := storage.NowMillis()
	rows, err := ex.QueryContext(ctx,
		"SELECT member FROM "+e.store.SetTable()+" WHERE key = ? AND "+liveClause+" ORDER BY member ASC",
		key, now,
	)
	if err != nil {
		return nil, fmt.Errorf("engine: smembers: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("engine: smembers scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
