package contracts

import "time"

// EarningRecord is one upcoming earnings report in the summary
// ⭐ SSOT: 실적 요약 결과 한 건
type EarningRecord struct {
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"companyName"`
	Sector      string    `json:"sector"`
	EarningDate time.Time `json:"earningDate"`           // calendar date of the report
	EarningTime string    `json:"earningTime,omitempty"` // BMO, AMC or empty
	EPSEstimate *float64  `json:"epsEstimate,omitempty"`
	Price       *float64  `json:"currentPrice,omitempty"`
	MarketCap   string    `json:"marketCap,omitempty"`
}

// Within reports whether the earnings date lies in [start, end], inclusive
func (r EarningRecord) Within(start, end time.Time) bool {
	d := dateOf(r.EarningDate, start.Location())
	return !d.Before(dateOf(start, start.Location())) && !d.After(dateOf(end, start.Location()))
}

// Page is one page of a result list
type Page[T any] struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Results    []T  `json:"results"`
	Stale      bool `json:"stale,omitempty"`
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
