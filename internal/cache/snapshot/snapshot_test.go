package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar/calendartest"
	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/database"
	"github.com/wonny/marketgate/pkg/logger"
	"github.com/wonny/marketgate/pkg/redis"
)

func sampleEntries() []cache.CacheEntry {
	ny := calendartest.NewYork()
	eps := 1.25
	return []cache.CacheEntry{
		{
			Scope:  cache.ScopeAll,
			Period: cache.Period1M,
			Records: []contracts.EarningRecord{
				{Ticker: "CSCO", Sector: "Technology", EarningDate: time.Date(2025, 8, 13, 0, 0, 0, 0, ny), EarningTime: "AMC", EPSEstimate: &eps},
			},
			ComputedAt: time.Date(2025, 8, 13, 6, 0, 0, 0, ny),
			CacheDate:  time.Date(2025, 8, 13, 0, 0, 0, 0, ny),
			Source:     cache.SourceComputed,
		},
		{
			Scope:      "Energy",
			Period:     cache.Period1M,
			ComputedAt: time.Date(2025, 8, 13, 6, 1, 0, 0, ny),
			CacheDate:  time.Date(2025, 8, 13, 0, 0, 0, 0, ny),
		},
	}
}

// assertSameEntries compares by key and instant, ignoring row order and
// the location the decoder picked
func assertSameEntries(t *testing.T, want, got []cache.CacheEntry) {
	t.Helper()
	require.Len(t, got, len(want))

	byKey := make(map[cache.Key]cache.CacheEntry, len(got))
	for _, e := range got {
		byKey[e.Key()] = e
	}

	for _, w := range want {
		g, ok := byKey[w.Key()]
		require.True(t, ok, "missing %s", w.Key())
		assert.True(t, w.CacheDate.Equal(g.CacheDate))
		assert.True(t, w.ComputedAt.Equal(g.ComputedAt))
		require.Len(t, g.Records, len(w.Records))
		for j := range w.Records {
			assert.Equal(t, w.Records[j].Ticker, g.Records[j].Ticker)
			assert.True(t, w.Records[j].EarningDate.Equal(g.Records[j].EarningDate))
		}
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	store := NewFileStore(path)
	ctx := context.Background()

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Save(ctx, sampleEntries()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)
	require.NotNil(t, got[0].Records[0].EPSEstimate)
	assert.Equal(t, 1.25, *got[0].Records[0].EPSEstimate)

	// No temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, store.Save(ctx, nil))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreDefaultPath(t *testing.T) {
	assert.Equal(t, "file:"+DefaultFilePath, NewFileStore("").Name())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromAddr(mr.Addr())
	defer client.Close()

	store := NewRedisStore(redis.NewCache(client, "marketgate"))
	ctx := context.Background()

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Save(ctx, sampleEntries()))
	assert.True(t, mr.Exists("marketgate:cache:snapshot:results"))
	assert.Equal(t, redis.TTLDaily, mr.TTL("marketgate:cache:snapshot:results"))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)

	mr.FastForward(redis.TTLDaily + time.Second)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save(ctx, sampleEntries()))
	require.NoError(t, store.Save(ctx, nil))
	assert.False(t, mr.Exists("marketgate:cache:snapshot:results"))
}

// The file store feeds a cache restart on the same day
func TestFileStoreWithResultCache(t *testing.T) {
	clock := calendartest.NewFakeClock(time.Date(2025, 8, 13, 9, 0, 0, 0, calendartest.NewYork()))
	cal := calendartest.Calendar(clock)
	store := NewFileStore(filepath.Join(t.TempDir(), DefaultFilePath))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleEntries()))

	c := cache.New(cal, logger.Nop(), cache.WithSnapshotStore(store))
	loaded, err := c.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	res, ok := c.Peek(cache.ScopeAll, cache.Period1D)
	require.True(t, ok)
	assert.False(t, res.Stale)
	assert.Len(t, res.Records, 1)
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, db)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, sampleEntries()))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)

	require.NoError(t, store.Save(ctx, nil))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
