package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smallnest/redisqlite/storage"
)

// kindOf returns the store a key currently belongs to, or storage.KindNone
// if it owns no rows in any store.
func kindOf(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (storage.Kind, error) {
	var kind string
	row := ex.QueryRowContext(ctx, "SELECT kind FROM "+s.KeyTypeTable()+" WHERE key = ?", key)
	if err := row.Scan(&kind); err != nil {
		if err == sql.ErrNoRows {
			return storage.KindNone, nil
		}
		return storage.KindNone, fmt.Errorf("engine: read key_type: %w", err)
	}
	return storage.Kind(kind), nil
}

// liveKind returns the store key currently belongs to, treating a key whose
// rows have all expired (even if the reaper has not swept them yet) as
// owning no type at all — EXISTS and TTL already report such a key as gone,
// so type checks must agree. The stale sidecar row is left in place: the
// next write that claims the key overwrites it, and the reaper prunes the
// rest.
func liveKind(ctx context.Context, ex storage.Executor, s *storage.Store, key string) (storage.Kind, error) {
	kind, err := kindOf(ctx, ex, s, key)
	if err != nil || kind == storage.KindNone {
		return storage.KindNone, err
	}
	table := tableForKind(s, kind)
	now := storage.NowMillis()
	var dummy int
	row := ex.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE key = ? AND "+liveClause+" LIMIT 1", key, now)
	switch err := row.Scan(&dummy); err {
	case nil:
		return kind, nil
	case sql.ErrNoRows:
		return storage.KindNone, nil
	default:
		return storage.KindNone, fmt.Errorf("engine: live kind: %w", err)
	}
}

// requireType fails WRONGTYPE if key already belongs to a different,
// non-empty, live type. Every write that can create a key goes through this
// one choke point, so no pair of stores can ever hold the same live key.
func requireType(ctx context.Context, ex storage.Executor, s *storage.Store, key string, want storage.Kind) error {
	existing, err := liveKind(ctx, ex, s, key)
	if err != nil {
		return err
	}
	if existing != storage.KindNone && existing != want {
		return ErrWrongType()
	}
	return nil
}

// claimType records that key now belongs to kind. Called after the first
// write that creates a key.
func claimType(ctx context.Context, ex storage.Executor, s *storage.Store, key string, kind storage.Kind) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO "+s.KeyTypeTable()+" (key, kind) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET kind = excluded.kind",
		key, string(kind),
	)
	if err != nil {
		return fmt.Errorf("engine: claim key_type: %w", err)
	}
	return nil
}

// purgeExpired physically removes key's expired rows from table, so a write
// that re-creates the key never collides with a dead row the reaper has not
// swept yet (list index slots, hash fields, and set members all key on
// them) and never inherits a dead row's expiry.
func purgeExpired(ctx context.Context, ex storage.Executor, table, key string) error {
	now := storage.NowMillis()
	if _, err := ex.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE key = ? AND expiry IS NOT NULL AND expiry <= ?", key, now); err != nil {
		return fmt.Errorf("engine: purge expired: %w", err)
	}
	return nil
}

// releaseType removes the sidecar entry once a key's last row has been
// removed. Safe to call speculatively; callers should only invoke it once
// they know the owning store has no rows left for key.
func releaseType(ctx context.Context, ex storage.Executor, s *storage.Store, key string) error {
	_, err := ex.ExecContext(ctx, "DELETE FROM "+s.KeyTypeTable()+" WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("engine: release key_type: %w", err)
	}
	return nil
}
