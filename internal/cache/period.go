package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/marketgate/internal/calendar"
)

// Period is a look-ahead horizon for the earnings summary
type Period string

const (
	Period1D Period = "1D"
	Period1W Period = "1W"
	Period1M Period = "1M"
)

// AllPeriods in ascending width
var AllPeriods = []Period{Period1D, Period1W, Period1M}

// ParsePeriod accepts 1D, 1W or 1M in any case
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case Period1D, Period1W, Period1M:
		return p, nil
	default:
		return "", fmt.Errorf("invalid period %q, want one of 1D, 1W, 1M", s)
	}
}

// Days is how many calendar days past the anchor the window reaches
func (p Period) Days() int {
	switch p {
	case Period1W:
		return 7
	case Period1M:
		return 30
	default:
		return 0
	}
}

// BroadestPeriodFor returns the period whose entry serves p.
// Every period is served by filtering the 1M entry.
func BroadestPeriodFor(Period) Period {
	return Period1M
}

// PeriodWindow is an inclusive range of calendar dates
type PeriodWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls on a date inside the window
func (w PeriodWindow) Contains(t time.Time) bool {
	d := calendar.Date(t.In(w.Start.Location()))
	return !d.Before(w.Start) && !d.After(w.End)
}

// String renders the window as start..end
func (w PeriodWindow) String() string {
	return w.Start.Format(calendar.DateLayout) + ".." + w.End.Format(calendar.DateLayout)
}

// WindowFor anchors on today when it is a working day, else on the next
// working day, and extends by the period's day count
func WindowFor(ts calendar.TimeSource, today time.Time, p Period) PeriodWindow {
	anchor := calendar.NextWorkingDay(ts, today)
	return PeriodWindow{
		Start: anchor,
		End:   calendar.AddDays(anchor, p.Days()),
	}
}

// Windows returns the window of every period for today
func Windows(ts calendar.TimeSource, today time.Time) map[Period]PeriodWindow {
	out := make(map[Period]PeriodWindow, len(AllPeriods))
	for _, p := range AllPeriods {
		out[p] = WindowFor(ts, today, p)
	}
	return out
}

// ScopeAll is the scope covering every sector
const ScopeAll = "all"

// ScopeFor normalizes a sector list into a cache scope key
func ScopeFor(sectors []string) string {
	cleaned := make([]string, 0, len(sectors))
	seen := make(map[string]struct{}, len(sectors))
	for _, s := range sectors {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, ScopeAll) {
			continue
		}
		if _, dup := seen[strings.ToLower(s)]; dup {
			continue
		}
		seen[strings.ToLower(s)] = struct{}{}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return ScopeAll
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, ",")
}

// SectorsOf splits a scope key back into sectors; ScopeAll yields nil
func SectorsOf(scope string) []string {
	if scope == "" || scope == ScopeAll {
		return nil
	}
	return strings.Split(scope, ",")
}

// ParseScope turns a comma separated query parameter into a scope key
func ParseScope(param string) string {
	return ScopeFor(strings.Split(param, ","))
}
