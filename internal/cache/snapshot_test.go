package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/internal/contracts"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []CacheEntry
	saves   int
	loadErr error
}

func (s *memoryStore) Name() string { return "memory" }

func (s *memoryStore) Load(ctx context.Context) ([]CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]CacheEntry(nil), s.entries...), nil
}

func (s *memoryStore) Save(ctx context.Context, entries []CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.entries = append([]CacheEntry(nil), entries...)
	return nil
}

func TestSnapshotRequiresStore(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))

	_, err := c.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
	_, err = c.SaveSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := &memoryStore{}
	at := time.Date(2025, 8, 13, 10, 0, 0, 0, ny)
	ctx := context.Background()

	first, _ := newTestCache(t, at, WithSnapshotStore(store))
	src := &counter{data: dataset()}
	_, err := first.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	_, err = first.GetOrCompute(ctx, "Energy", Period1W, src.compute)
	require.NoError(t, err)

	saved, err := first.SaveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// A restart on the same day serves from the snapshot
	second, _ := newTestCache(t, at.Add(time.Hour), WithSnapshotStore(store))
	loaded, err := second.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	fail := func(context.Context, string, PeriodWindow) ([]contracts.EarningRecord, error) {
		return nil, errors.New("unexpected compute")
	}
	res, err := second.GetOrCompute(ctx, ScopeAll, Period1W, fail)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Len(t, res.Records, 8)
	assert.Equal(t, SourceSnapshot, second.Status().Periods[Period1W].Source)
	assert.Equal(t, "memory", second.Status().Snapshot)
}

func TestLoadSnapshotSkipsOtherDays(t *testing.T) {
	store := &memoryStore{entries: []CacheEntry{
		{Scope: ScopeAll, Period: Period1M, CacheDate: date(2025, 8, 12)},
		{Scope: "Energy", Period: Period1M, CacheDate: date(2025, 8, 13)},
		{Scope: "Energy", Period: "6M", CacheDate: date(2025, 8, 13)},
		{Scope: "", Period: Period1M, CacheDate: date(2025, 8, 13)},
	}}
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny), WithSnapshotStore(store))

	loaded, err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, []string{"Energy"}, c.Scopes())
}

func TestLoadSnapshotKeepsNewerMemoryEntry(t *testing.T) {
	at := time.Date(2025, 8, 13, 10, 0, 0, 0, ny)
	store := &memoryStore{entries: []CacheEntry{
		{Scope: ScopeAll, Period: Period1M, CacheDate: date(2025, 8, 13), ComputedAt: at.Add(-time.Hour)},
	}}
	c, _ := newTestCache(t, at, WithSnapshotStore(store))

	src := &counter{data: dataset()}
	_, err := c.GetOrCompute(context.Background(), ScopeAll, Period1M, src.compute)
	require.NoError(t, err)

	loaded, err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, loaded)
	assert.Equal(t, SourceComputed, c.Status().Periods[Period1M].Source)
}

func TestLoadSnapshotError(t *testing.T) {
	store := &memoryStore{loadErr: errors.New("disk gone")}
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny), WithSnapshotStore(store))

	_, err := c.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, store.loadErr)
}

func TestClearEmptiesSnapshot(t *testing.T) {
	store := &memoryStore{entries: []CacheEntry{{Scope: ScopeAll, Period: Period1M}}}
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny), WithSnapshotStore(store))

	c.Clear(context.Background())
	assert.Empty(t, store.entries)
	assert.Equal(t, 1, store.saves)
}
