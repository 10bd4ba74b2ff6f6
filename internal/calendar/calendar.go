// Package calendar answers "what is today" and "is this a trading day" for
// the exchange the service follows.
package calendar

import (
	"fmt"
	"time"

	"github.com/wonny/marketgate/pkg/config"
)

// DateLayout is the canonical calendar date format
const DateLayout = "2006-01-02"

// maxScanDays bounds NextWorkingDay scans over a misconfigured holiday list
const maxScanDays = 366

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// TimeSource is the single source of "now", "today" and working-day rules
// ⭐ SSOT: 캐시 날짜와 윈도우 계산은 모두 TimeSource를 통해서만
type TimeSource interface {
	Clock

	// Today is the current calendar date (midnight) in the market location
	Today() time.Time

	// IsWorkingDay reports whether the market trades on date
	IsWorkingDay(date time.Time) bool

	// Location is the market time zone
	Location() *time.Location
}

// MarketCalendar treats weekends and configured holidays as non-working days.
// It is immutable after construction and safe for concurrent use.
type MarketCalendar struct {
	clock    Clock
	loc      *time.Location
	holidays map[string]struct{}
}

// New builds a MarketCalendar from config using the system clock
func New(cfg config.CalendarConfig) (*MarketCalendar, error) {
	return NewWithClock(cfg, SystemClock)
}

// NewWithClock builds a MarketCalendar driven by clock
func NewWithClock(cfg config.CalendarConfig, clock Clock) (*MarketCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", cfg.Timezone, err)
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := time.ParseInLocation(DateLayout, h, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		holidays[d.Format(DateLayout)] = struct{}{}
	}

	return &MarketCalendar{
		clock:    clock,
		loc:      loc,
		holidays: holidays,
	}, nil
}

// Now returns the current instant in the market location
func (c *MarketCalendar) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

// Today returns the current market calendar date
func (c *MarketCalendar) Today() time.Time {
	return Date(c.Now())
}

// Location returns the market time zone
func (c *MarketCalendar) Location() *time.Location {
	return c.loc
}

// IsWorkingDay reports whether date is neither a weekend nor a holiday
func (c *MarketCalendar) IsWorkingDay(date time.Time) bool {
	d := date.In(c.loc)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[d.Format(DateLayout)]
	return !holiday
}

// IsHoliday reports whether date is a configured market holiday
func (c *MarketCalendar) IsHoliday(date time.Time) bool {
	_, ok := c.holidays[date.In(c.loc).Format(DateLayout)]
	return ok
}

// Date truncates t to its calendar date in t's own location
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AddDays moves a calendar date by n days
func AddDays(date time.Time, n int) time.Time {
	return Date(date).AddDate(0, 0, n)
}

// NextWorkingDay returns date itself when it is a working day, otherwise
// the first working day after it
func NextWorkingDay(ts TimeSource, date time.Time) time.Time {
	d := Date(date.In(ts.Location()))
	for i := 0; i < maxScanDays && !ts.IsWorkingDay(d); i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// ParseDate parses a YYYY-MM-DD string as a market calendar date
func ParseDate(ts TimeSource, s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, ts.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}
