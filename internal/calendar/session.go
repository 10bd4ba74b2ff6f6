package calendar

import "time"

// Session is the trading session at a given instant
type Session string

const (
	SessionClosed     Session = "closed"
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionAfterHours Session = "after_hours"
)

// Regular session bounds in market-local time
var (
	preMarketOpen  = clockTime{4, 0}
	regularOpen    = clockTime{9, 30}
	regularClose   = clockTime{16, 0}
	afterHoursDone = clockTime{20, 0}
)

type clockTime struct{ hour, minute int }

func (c clockTime) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

// Status describes the market at one instant
type Status struct {
	Now            time.Time `json:"now"`
	Today          string    `json:"today"`
	IsWorkingDay   bool      `json:"is_working_day"`
	IsHoliday      bool      `json:"is_holiday"`
	Session        Session   `json:"session"`
	IsOpen         bool      `json:"is_open"`
	AnchorDate     string    `json:"anchor_date"`
	NextWorkingDay string    `json:"next_working_day"`
	Timezone       string    `json:"timezone"`
}

// SessionAt classifies t into a trading session
func SessionAt(ts TimeSource, t time.Time) Session {
	t = t.In(ts.Location())
	if !ts.IsWorkingDay(t) {
		return SessionClosed
	}

	day := Date(t)
	switch {
	case t.Before(preMarketOpen.on(day)):
		return SessionClosed
	case t.Before(regularOpen.on(day)):
		return SessionPreMarket
	case t.Before(regularClose.on(day)):
		return SessionRegular
	case t.Before(afterHoursDone.on(day)):
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// MarketStatus reports today's working-day information
func (c *MarketCalendar) MarketStatus() Status {
	now := c.Now()
	today := Date(now)
	session := SessionAt(c, now)

	return Status{
		Now:            now,
		Today:          today.Format(DateLayout),
		IsWorkingDay:   c.IsWorkingDay(today),
		IsHoliday:      c.IsHoliday(today),
		Session:        session,
		IsOpen:         session == SessionRegular,
		AnchorDate:     NextWorkingDay(c, today).Format(DateLayout),
		NextWorkingDay: NextWorkingDay(c, today.AddDate(0, 0, 1)).Format(DateLayout),
		Timezone:       c.loc.String(),
	}
}
