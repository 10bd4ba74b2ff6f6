package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEarningRecordWithin(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2025, 8, 13, 0, 0, 0, 0, ny)
	end := start.AddDate(0, 0, 7)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"start boundary", start, true},
		{"end boundary", end, true},
		{"inside with time of day", time.Date(2025, 8, 15, 16, 30, 0, 0, ny), true},
		{"day before", start.AddDate(0, 0, -1), false},
		{"day after", end.AddDate(0, 0, 1), false},
		{"utc late evening of end date", time.Date(2025, 8, 21, 3, 0, 0, 0, time.UTC), true}, // 23:00 on the 20th in NY
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EarningRecord{Ticker: "AAPL", EarningDate: tt.date}
			assert.Equal(t, tt.want, r.Within(start, end))
		})
	}
}

func TestQuoteChangePercent(t *testing.T) {
	assert.InDelta(t, 2.0, Quote{Price: 102, PreviousClose: 100}.ChangePercent(), 1e-9)
	assert.Zero(t, Quote{Price: 5}.ChangePercent())
}
