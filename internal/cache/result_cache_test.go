package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/calendar/calendartest"
	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/pkg/logger"
)

var ny = calendartest.NewYork()

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ny)
}

// dataset spreads earnings over the six weeks after 2025-08-11
func dataset() []contracts.EarningRecord {
	var out []contracts.EarningRecord
	sectors := []string{"Technology", "Energy", "Healthcare"}
	for i := 0; i < 42; i++ {
		out = append(out, contracts.EarningRecord{
			Ticker:      fmt.Sprintf("T%02d", i),
			Sector:      sectors[i%len(sectors)],
			EarningDate: date(2025, 8, 11).AddDate(0, 0, i),
		})
	}
	return out
}

type counter struct {
	calls atomic.Int32
	data  []contracts.EarningRecord
	err   error
}

func (c *counter) compute(ctx context.Context, scope string, window PeriodWindow) ([]contracts.EarningRecord, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	var out []contracts.EarningRecord
	for _, r := range c.data {
		if (scope == ScopeAll || r.Sector == scope) && window.Contains(r.EarningDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestCache(t *testing.T, at time.Time, opts ...Option) (*ResultCache, *calendartest.FakeClock) {
	t.Helper()
	clock := calendartest.NewFakeClock(at)
	return New(calendartest.Calendar(clock), logger.Nop(), opts...), clock
}

func TestWindowFor(t *testing.T) {
	cal := calendartest.Calendar(calendar.SystemClock)

	tests := []struct {
		name   string
		today  time.Time
		period Period
		start  string
		end    string
	}{
		{"weekday 1D", date(2025, 8, 13), Period1D, "2025-08-13", "2025-08-13"},
		{"weekday 1W", date(2025, 8, 13), Period1W, "2025-08-13", "2025-08-20"},
		{"weekday 1M", date(2025, 8, 13), Period1M, "2025-08-13", "2025-09-12"},
		{"saturday anchors monday", date(2025, 8, 16), Period1D, "2025-08-18", "2025-08-18"},
		{"holiday anchors next day", date(2025, 7, 4), Period1W, "2025-07-07", "2025-07-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowFor(cal, tt.today, tt.period)
			assert.Equal(t, tt.start, w.Start.Format(calendar.DateLayout))
			assert.Equal(t, tt.end, w.End.Format(calendar.DateLayout))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod(" 1w ")
	require.NoError(t, err)
	assert.Equal(t, Period1W, p)

	_, err = ParsePeriod("3M")
	assert.Error(t, err)

	for _, p := range AllPeriods {
		assert.Equal(t, Period1M, BroadestPeriodFor(p))
	}
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeAll, ScopeFor(nil))
	assert.Equal(t, ScopeAll, ScopeFor([]string{"", " All "}))
	assert.Equal(t, "Energy,Technology", ScopeFor([]string{" Technology", "Energy", "technology"}))
	assert.Equal(t, "Energy,Technology", ParseScope("Technology,Energy"))
	assert.Equal(t, []string{"Energy", "Technology"}, SectorsOf("Energy,Technology"))
	assert.Nil(t, SectorsOf(ScopeAll))
}

func TestGetOrCompute_NarrowerPeriodsShareOneCompute(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))
	src := &counter{data: dataset()}
	ctx := context.Background()

	day, err := c.GetOrCompute(ctx, ScopeAll, Period1D, src.compute)
	require.NoError(t, err)
	assert.False(t, day.Hit)

	month, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	assert.True(t, month.Hit)

	week, err := c.GetOrCompute(ctx, ScopeAll, Period1W, src.compute)
	require.NoError(t, err)
	assert.True(t, week.Hit)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Len(t, day.Records, 1)
	assert.Len(t, week.Records, 8)
	assert.Len(t, month.Records, 31)
}

func TestGetOrCompute_FilteringMatchesDirectCompute(t *testing.T) {
	at := time.Date(2025, 8, 16, 9, 0, 0, 0, ny) // Saturday
	c, _ := newTestCache(t, at)
	src := &counter{data: dataset()}
	ctx := context.Background()

	for _, p := range AllPeriods {
		got, err := c.GetOrCompute(ctx, ScopeAll, p, src.compute)
		require.NoError(t, err)

		direct := &counter{data: dataset()}
		want, err := direct.compute(ctx, ScopeAll, WindowFor(c.ts, c.ts.Today(), p))
		require.NoError(t, err)

		assert.Equal(t, want, got.Records, "period %s", p)
	}
}

func TestGetOrCompute_SectorServedFromCache(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 8, 0, 0, 0, ny))
	src := &counter{data: dataset()}
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, "Technology", Period1M, src.compute)
	require.NoError(t, err)

	fail := func(context.Context, string, PeriodWindow) ([]contracts.EarningRecord, error) {
		t.Fatal("upstream must not be called on a cache hit")
		return nil, nil
	}

	week, err := c.GetOrCompute(ctx, "Technology", Period1W, fail)
	require.NoError(t, err)
	assert.True(t, week.Hit)
	for _, r := range week.Records {
		assert.Equal(t, "Technology", r.Sector)
		assert.True(t, week.Window.Contains(r.EarningDate))
	}
	assert.Equal(t, "2025-08-13..2025-08-20", week.Window.String())
}

func TestGetOrCompute_DayRolloverInvalidates(t *testing.T) {
	c, clock := newTestCache(t, time.Date(2025, 8, 13, 23, 59, 0, 0, ny))
	src := &counter{data: dataset()}
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "Energy", Period1M, src.compute)
	require.NoError(t, err)
	require.True(t, c.Status().IsValid)

	clock.Advance(2 * time.Minute)

	status := c.Status()
	assert.False(t, status.IsValid)
	assert.Zero(t, status.SectorCacheCount)
	assert.Empty(t, c.Scopes())

	res, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, "2025-08-14", res.CacheDate.Format(calendar.DateLayout))
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, int64(1), c.Status().Evictions)

	// The stale sector entry stays available as a fallback
	energy, ok := c.Peek("Energy", Period1M)
	require.True(t, ok)
	assert.True(t, energy.Stale)
}

func TestGetOrCompute_ConcurrentMissesComputeOnce(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))

	release := make(chan struct{})
	var calls atomic.Int32
	slow := func(ctx context.Context, scope string, w PeriodWindow) ([]contracts.EarningRecord, error) {
		calls.Add(1)
		<-release
		return dataset()[:3], nil
	}

	const callers = 10
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := c.GetOrCompute(context.Background(), ScopeAll, Period1W, slow)
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))
	src := &counter{err: errors.New("upstream down")}

	_, err := c.GetOrCompute(context.Background(), ScopeAll, Period1D, src.compute)
	assert.ErrorIs(t, err, src.err)
	assert.Zero(t, c.Len())

	src.err = nil
	src.data = dataset()
	_, err = c.GetOrCompute(context.Background(), ScopeAll, Period1D, src.compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestGetOrCompute_CallerCancelled(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))

	release := make(chan struct{})
	blocked := func(ctx context.Context, scope string, w PeriodWindow) ([]contracts.EarningRecord, error) {
		<-release
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.GetOrCompute(ctx, ScopeAll, Period1D, blocked)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestForceRefresh(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))
	src := &counter{data: dataset()}
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)

	src.data = dataset()[:5]
	res, err := c.ForceRefresh(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Len(t, res.Records, 3) // T02..T04 fall on or after 2025-08-13

	hit, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	assert.True(t, hit.Hit)
	assert.Len(t, hit.Records, 3)
}

func TestPeekReturnsStaleEntry(t *testing.T) {
	c, clock := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))
	src := &counter{data: dataset()}

	_, ok := c.Peek(ScopeAll, Period1W)
	assert.False(t, ok)

	_, err := c.GetOrCompute(context.Background(), ScopeAll, Period1M, src.compute)
	require.NoError(t, err)

	res, ok := c.Peek(ScopeAll, Period1W)
	require.True(t, ok)
	assert.False(t, res.Stale)

	clock.Advance(24 * time.Hour)
	res, ok = c.Peek(ScopeAll, Period1W)
	require.True(t, ok)
	assert.True(t, res.Stale)
	assert.Equal(t, "2025-08-13..2025-08-20", res.Window.String())
	assert.Len(t, res.Records, 8)
}

func TestClearAndStatus(t *testing.T) {
	c, _ := newTestCache(t, time.Date(2025, 8, 13, 10, 0, 0, 0, ny))
	src := &counter{data: dataset()}
	ctx := context.Background()

	status := c.Status()
	assert.False(t, status.IsValid)
	assert.Equal(t, "2025-08-13", status.CacheDate)
	assert.False(t, status.Periods[Period1D].HasData)

	_, err := c.GetOrCompute(ctx, ScopeAll, Period1M, src.compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "Technology", Period1W, src.compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "Technology", Period1D, src.compute)
	require.NoError(t, err)

	status = c.Status()
	assert.True(t, status.IsValid)
	assert.Equal(t, 1, status.SectorCacheCount)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, int64(2), status.Computes)
	assert.Equal(t, int64(1), status.Hits)
	assert.Equal(t, 1, status.Periods[Period1D].ResultCount)
	assert.Equal(t, 8, status.Periods[Period1W].ResultCount)
	assert.Equal(t, 31, status.Periods[Period1M].ResultCount)
	assert.Equal(t, SourceComputed, status.Periods[Period1M].Source)
	assert.Equal(t, []string{"Technology", ScopeAll}, c.Scopes())

	assert.Equal(t, 2, c.Clear(ctx))
	assert.Zero(t, c.Len())
	assert.False(t, c.Status().IsValid)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name       string
		page, per  int
		want       []int
		totalPages int
		wantPage   int
		wantPer    int
	}{
		{"first page", 1, 3, []int{1, 2, 3}, 3, 1, 3},
		{"last partial page", 3, 3, []int{7}, 3, 3, 3},
		{"past the end", 9, 3, []int{}, 3, 9, 3},
		{"defaults", 0, 0, []int{1, 2, 3, 4, 5, 6, 7}, 1, 1, 10},
		{"per page capped", 1, 1000, []int{1, 2, 3, 4, 5, 6, 7}, 1, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, tt.page, tt.per)
			assert.Equal(t, tt.want, p.Results)
			assert.Equal(t, 7, p.Total)
			assert.Equal(t, tt.totalPages, p.TotalPages)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPer, p.PerPage)
		})
	}
}
