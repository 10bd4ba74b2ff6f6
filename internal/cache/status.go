package cache

import (
	"time"

	"github.com/wonny/marketgate/internal/calendar"
)

// PeriodStatus describes what the cache can serve for one period
type PeriodStatus struct {
	HasData     bool       `json:"has_data"`
	LastUpdated *time.Time `json:"last_updated"`
	ResultCount int        `json:"result_count"`
	Source      string     `json:"source,omitempty"`
}

// Status is the admin view of the cache
type Status struct {
	CacheDate        string                  `json:"cache_date"`
	IsValid          bool                    `json:"is_valid"`
	Periods          map[Period]PeriodStatus `json:"periods"`
	SectorCacheCount int                     `json:"sector_cache_count"`
	TotalEntries     int                     `json:"total_entries"`
	Hits             int64                   `json:"hits"`
	Misses           int64                   `json:"misses"`
	Computes         int64                   `json:"computes"`
	Evictions        int64                   `json:"evictions"`
	Snapshot         string                  `json:"snapshot,omitempty"`
}

// Status reports the "all" scope per period plus sector entry counts
func (c *ResultCache) Status() Status {
	today := c.ts.Today()

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		CacheDate:    today.Format(calendar.DateLayout),
		Periods:      make(map[Period]PeriodStatus, len(AllPeriods)),
		TotalEntries: len(c.entries),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computes:     c.computes.Load(),
		Evictions:    c.evictions.Load(),
	}
	if c.store != nil {
		s.Snapshot = c.store.Name()
	}

	for k, e := range c.entries {
		if k.Scope != ScopeAll && c.isToday(e, today) {
			s.SectorCacheCount++
		}
	}

	all, ok := c.entries[Key{Scope: ScopeAll, Period: Period1M}]
	valid := ok && c.isToday(all, today)
	s.IsValid = valid

	for _, p := range AllPeriods {
		if !valid {
			s.Periods[p] = PeriodStatus{}
			continue
		}
		updated := all.ComputedAt
		s.Periods[p] = PeriodStatus{
			HasData:     true,
			LastUpdated: &updated,
			ResultCount: len(filter(all.Records, WindowFor(c.ts, today, p))),
			Source:      all.Source,
		}
	}

	return s
}
