package cache

import (
	"time"

	"github.com/wonny/marketgate/internal/contracts"
)

// Entry sources
const (
	SourceComputed = "computed"
	SourceSnapshot = "snapshot"
)

// Key identifies one cache entry
type Key struct {
	Scope  string
	Period Period
}

func (k Key) String() string { return k.Scope + "|" + string(k.Period) }

// CacheEntry is a computed result stamped with the day it belongs to.
// It is usable only while CacheDate equals today.
type CacheEntry struct {
	Scope      string                    `json:"scope"`
	Period     Period                    `json:"period"`
	Records    []contracts.EarningRecord `json:"records"`
	ComputedAt time.Time                 `json:"computed_at"`
	CacheDate  time.Time                 `json:"cache_date"`
	Source     string                    `json:"source"`
}

// Key returns the entry's cache key
func (e CacheEntry) Key() Key { return Key{Scope: e.Scope, Period: e.Period} }

// Result is what a lookup hands back to callers
type Result struct {
	Scope      string
	Period     Period
	Window     PeriodWindow
	Records    []contracts.EarningRecord
	CacheDate  time.Time
	ComputedAt time.Time
	Hit        bool // served without computing
	Stale      bool // CacheDate is not today
}

// filter keeps records inside window, preserving order
func filter(records []contracts.EarningRecord, window PeriodWindow) []contracts.EarningRecord {
	out := make([]contracts.EarningRecord, 0, len(records))
	for _, r := range records {
		if window.Contains(r.EarningDate) {
			out = append(out, r)
		}
	}
	return out
}

// Paginate slices items into 1-based pages. perPage defaults to 10 and is
// capped at 100.
func Paginate[T any](items []T, page, perPage int) contracts.Page[T] {
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}

	total := len(items)
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	results := make([]T, end-start)
	copy(results, items[start:end])

	return contracts.Page[T]{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
		Results:    results,
	}
}
