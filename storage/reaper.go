package storage

import (
	"context"
	"fmt"
	"time"
)

// Reaper periodically deletes rows whose expiry has elapsed from all four
// type-stores and prunes any key_type entries left orphaned by the sweep.
// Reaping is best-effort: readers must independently re-check expiry against
// the current time so a pending-but-not-yet-reaped row is never served as
// live.
type Reaper struct {
	store    *Store
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewReaper creates a reaper that sweeps the store every interval. A
// non-positive interval defaults to one second.
func NewReaper(store *Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reaper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run starts the sweep loop and blocks until Stop is called. Callers
// typically invoke this in its own goroutine.
func (r *Reaper) Run() {
	defer close(r.stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.sweep(context.Background()); err != nil {
				r.store.logger.Warn("reaper: sweep failed: %v", err)
			}
		}
	}
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	select {
	case <-r.done:
		// already stopped
	default:
		close(r.done)
	}
	<-r.stopped
}

func (r *Reaper) sweep(ctx context.Context) error {
	now := NowMillis()
	return r.store.WithWrite(ctx, func(ex Executor) error {
		for _, table := range []string{
			r.store.StringTable(),
			r.store.HashTable(),
			r.store.ListTable(),
			r.store.SetTable(),
		} {
			if _, err := ex.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE expiry IS NOT NULL AND expiry < ?", table),
				now,
			); err != nil {
				return fmt.Errorf("reap %s: %w", table, err)
			}
		}
		// Prune key_type entries for keys that no longer have rows in any
		// store, so EXISTS/DEL/TTL (which consult the sidecar first) never
		// see a stale "owns a type" record after a reap.
		_, err := ex.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %[1]s WHERE key NOT IN (SELECT key FROM %[2]s)
			  AND key NOT IN (SELECT key FROM %[3]s)
			  AND key NOT IN (SELECT key FROM %[4]s)
			  AND key NOT IN (SELECT key FROM %[5]s)
		`, r.store.KeyTypeTable(), r.store.StringTable(), r.store.HashTable(), r.store.ListTable(), r.store.SetTable()))
		if err != nil {
			return fmt.Errorf("reap key_type: %w", err)
		}
		return nil
	})
}
