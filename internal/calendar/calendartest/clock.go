// Package calendartest provides a controllable clock for tests.
package calendartest

import (
	"sync"
	"time"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/pkg/config"
)

// FakeClock is a settable, goroutine-safe clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts the clock at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake instant
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock instead of blocking. It satisfies the
// governor's sleeper contract so timing tests run instantly.
func (c *FakeClock) Sleep(d time.Duration) {
	if d > 0 {
		c.Advance(d)
	}
}

// NewYork loads America/New_York or fails the caller
func NewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

// Calendar builds a NYSE MarketCalendar driven by clock
func Calendar(clock calendar.Clock) *calendar.MarketCalendar {
	cal, err := calendar.NewWithClock(config.CalendarConfig{
		Timezone: "America/New_York",
		Holidays: config.DefaultHolidays,
	}, clock)
	if err != nil {
		panic(err)
	}
	return cal
}
