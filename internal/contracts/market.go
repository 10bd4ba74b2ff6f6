package contracts

import "time"

// Stock is a member of the ticker universe
type Stock struct {
	Ticker  string `json:"ticker" yaml:"ticker"`
	Company string `json:"company" yaml:"company"`
	Sector  string `json:"sector" yaml:"sector"`
}

// Fundamentals is the per-ticker snapshot used to build earnings records
type Fundamentals struct {
	Ticker      string
	Company     string
	Sector      string
	Industry    string
	EarningDate time.Time // zero when the provider has none
	EarningTime string
	EPSEstimate *float64
	Price       *float64
	MarketCap   string
}

// HasEarningDate reports whether an upcoming report date is known
func (f Fundamentals) HasEarningDate() bool {
	return !f.EarningDate.IsZero()
}

// Quote is the latest trade information for a ticker
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Currency      string    `json:"currency,omitempty"`
	Exchange      string    `json:"exchange,omitempty"`
	MarketTime    time.Time `json:"market_time"`
}

// ChangePercent is the move since the previous close
func (q Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// PriceBar is one OHLCV bar
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
