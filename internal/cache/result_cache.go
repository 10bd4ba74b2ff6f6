// Package cache holds date-keyed earnings results. One 1M entry per scope
// and day serves every narrower period by filtering.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/pkg/logger"
)

// ComputeFunc produces the records of scope for window
type ComputeFunc func(ctx context.Context, scope string, window PeriodWindow) ([]contracts.EarningRecord, error)

// SnapshotStore persists cache entries across restarts
type SnapshotStore interface {
	Name() string
	Load(ctx context.Context) ([]CacheEntry, error)
	Save(ctx context.Context, entries []CacheEntry) error
}

// ResultCache is the in-memory, date-keyed result cache
// ⭐ SSOT: 실적 요약 캐시는 이 구조체에서만
type ResultCache struct {
	mu      sync.RWMutex
	entries map[Key]*CacheEntry
	ts      calendar.TimeSource
	group   singleflight.Group
	store   SnapshotStore
	logger  *logger.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	computes  atomic.Int64
	evictions atomic.Int64
}

// Option customizes a ResultCache
type Option func(*ResultCache)

// WithSnapshotStore enables LoadSnapshot and SaveSnapshot
func WithSnapshotStore(store SnapshotStore) Option {
	return func(c *ResultCache) { c.store = store }
}

// New creates an empty result cache
func New(ts calendar.TimeSource, log *logger.Logger, opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: make(map[Key]*CacheEntry),
		ts:      ts,
		logger:  log.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute serves period for scope from today's broadest entry, or
// computes that entry once when it is missing or from an earlier day.
// Concurrent misses for the same key share one compute. The compute runs
// detached from ctx cancellation so a departing caller does not fail the
// others; ctx still bounds how long this caller waits.
func (c *ResultCache) GetOrCompute(ctx context.Context, scope string, period Period, compute ComputeFunc) (Result, error) {
	today := c.ts.Today()
	key := Key{Scope: scope, Period: BroadestPeriodFor(period)}

	if entry, ok := c.valid(key, today); ok {
		c.hits.Add(1)
		c.logger.WithFields(map[string]interface{}{
			"scope":  scope,
			"period": string(period),
		}).Debug("Cache hit")
		return c.result(entry, period, today, true), nil
	}
	c.misses.Add(1)

	entry, err := c.computeShared(ctx, "get|"+key.String()+"|"+today.Format(calendar.DateLayout), key, today, compute, false)
	if err != nil {
		return Result{}, err
	}
	return c.result(entry, period, today, false), nil
}

// ForceRefresh recomputes scope's broadest entry regardless of what is cached
func (c *ResultCache) ForceRefresh(ctx context.Context, scope string, period Period, compute ComputeFunc) (Result, error) {
	today := c.ts.Today()
	key := Key{Scope: scope, Period: BroadestPeriodFor(period)}

	entry, err := c.computeShared(ctx, "refresh|"+key.String()+"|"+today.Format(calendar.DateLayout), key, today, compute, true)
	if err != nil {
		return Result{}, err
	}
	return c.result(entry, period, today, false), nil
}

// Peek returns scope's entry for period even when it is from an earlier
// day. Narrowing uses the windows of the entry's own CacheDate.
func (c *ResultCache) Peek(scope string, period Period) (Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[Key{Scope: scope, Period: BroadestPeriodFor(period)}]
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}

	r := c.result(entry, period, entry.CacheDate, false)
	r.Stale = !calendar.SameDate(entry.CacheDate.In(c.ts.Location()), c.ts.Today())
	return r, true
}

// Clear drops every entry and returns how many were removed
func (c *ResultCache) Clear(ctx context.Context) int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[Key]*CacheEntry)
	c.mu.Unlock()

	c.logger.WithField("count", n).Info("Cleared result cache")

	if c.store != nil {
		if err := c.store.Save(ctx, nil); err != nil {
			c.logger.WithError(err).Warn("Failed to clear cache snapshot")
		}
	}
	return n
}

// Len is the number of entries held, valid or not
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Scopes lists scopes with an entry valid today
func (c *ResultCache) Scopes() []string {
	today := c.ts.Today()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var scopes []string
	for k, e := range c.entries {
		if c.isToday(e, today) {
			scopes = append(scopes, k.Scope)
		}
	}
	sort.Strings(scopes)
	return scopes
}

// valid returns the entry for key when it was computed today. An entry
// from an earlier day is reported as absent but kept for Peek until a
// fresh compute replaces it.
func (c *ResultCache) valid(key Key, today time.Time) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.isToday(entry, today) {
		return nil, false
	}
	return entry, true
}

func (c *ResultCache) computeShared(ctx context.Context, flightKey string, key Key, today time.Time, compute ComputeFunc, force bool) (*CacheEntry, error) {
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		if !force {
			// A compute that finished just before this flight started
			if entry, ok := c.valid(key, today); ok {
				return entry, nil
			}
		}
		return c.compute(context.WithoutCancel(ctx), key, today, compute)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CacheEntry), nil
	}
}

func (c *ResultCache) compute(ctx context.Context, key Key, today time.Time, compute ComputeFunc) (*CacheEntry, error) {
	window := WindowFor(c.ts, today, key.Period)
	start := time.Now()

	records, err := compute(ctx, key.Scope, window)
	if err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"scope":  key.Scope,
			"window": window.String(),
		}).Warn("Cache compute failed")
		return nil, fmt.Errorf("compute %s: %w", key.Scope, err)
	}
	c.computes.Add(1)

	entry := &CacheEntry{
		Scope:      key.Scope,
		Period:     key.Period,
		Records:    records,
		ComputedAt: c.ts.Now(),
		CacheDate:  today,
		Source:     SourceComputed,
	}

	c.mu.Lock()
	if prev, ok := c.entries[key]; ok && !c.isToday(prev, today) {
		c.evictions.Add(1)
		c.logger.WithFields(map[string]interface{}{
			"scope":      key.Scope,
			"cache_date": prev.CacheDate.Format(calendar.DateLayout),
		}).Info("Replaced stale cache entry")
	}
	c.entries[key] = entry
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"scope":    key.Scope,
		"window":   window.String(),
		"records":  len(records),
		"duration": time.Since(start).String(),
	}).Info("Cache entry computed")

	return entry, nil
}

func (c *ResultCache) result(entry *CacheEntry, period Period, day time.Time, hit bool) Result {
	window := WindowFor(c.ts, calendar.Date(day.In(c.ts.Location())), period)
	return Result{
		Scope:      entry.Scope,
		Period:     period,
		Window:     window,
		Records:    filter(entry.Records, window),
		CacheDate:  entry.CacheDate,
		ComputedAt: entry.ComputedAt,
		Hit:        hit,
	}
}

func (c *ResultCache) isToday(e *CacheEntry, today time.Time) bool {
	return calendar.SameDate(e.CacheDate.In(c.ts.Location()), today)
}
