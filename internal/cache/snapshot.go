package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSnapshotStore is returned when persistence is not configured
var ErrNoSnapshotStore = errors.New("no snapshot store configured")

// LoadSnapshot restores entries stamped with today and skips the rest.
// An in-memory entry computed later than the stored one is kept.
func (c *ResultCache) LoadSnapshot(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, ErrNoSnapshotStore
	}

	stored, err := c.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot from %s: %w", c.store.Name(), err)
	}

	today := c.ts.Today()
	loaded, skipped := 0, 0

	c.mu.Lock()
	for i := range stored {
		e := stored[i]
		if e.Scope == "" || !c.isToday(&e, today) {
			skipped++
			continue
		}
		if _, err := ParsePeriod(string(e.Period)); err != nil {
			skipped++
			continue
		}
		if cur, ok := c.entries[e.Key()]; ok && cur.ComputedAt.After(e.ComputedAt) {
			continue
		}
		e.Source = SourceSnapshot
		c.entries[e.Key()] = &e
		loaded++
	}
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"store":   c.store.Name(),
		"loaded":  loaded,
		"skipped": skipped,
	}).Info("Loaded cache snapshot")

	return loaded, nil
}

// SaveSnapshot writes every entry valid today to the store
func (c *ResultCache) SaveSnapshot(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, ErrNoSnapshotStore
	}

	today := c.ts.Today()

	c.mu.RLock()
	entries := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if c.isToday(e, today) {
			entries = append(entries, *e)
		}
	}
	c.mu.RUnlock()

	if err := c.store.Save(ctx, entries); err != nil {
		return 0, fmt.Errorf("save snapshot to %s: %w", c.store.Name(), err)
	}

	c.logger.WithFields(map[string]interface{}{
		"store":   c.store.Name(),
		"entries": len(entries),
	}).Debug("Saved cache snapshot")

	return len(entries), nil
}
