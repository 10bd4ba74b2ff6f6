package finviz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
)

const quotePage = `<html><body>
<h2 class="quote-header_ticker-wrapper_company"><a href="#">Apple Inc</a></h2>
<div class="quote-links">
  <a href="screener.ashx?v=111&f=sec_technology" class="tab-link">Technology</a>
  <a href="screener.ashx?v=111&f=ind_consumerelectronics" class="tab-link">Consumer Electronics</a>
</div>
<table class="snapshot-table2">
  <tr><td>Index</td><td><b>DJIA, NDX, S&P 500</b></td><td>P/E</td><td><b>34.60</b></td></tr>
  <tr><td>Market Cap</td><td><b>3373.60B</b></td><td>EPS next Q</td><td><b>1.43</b></td></tr>
  <tr><td>Earnings</td><td><b>Aug 14 AMC</b></td><td>Price</td><td><b>227.18</b></td></tr>
</table>
</body></html>`

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote.ashx", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("t"))
		w.Write([]byte(quotePage))
	}))
	defer server.Close()

	c := NewClient(httputil.New(&config.Config{}, logger.Nop()), server.URL, logger.Nop())
	payload, err := c.Fetch(context.Background(), "aapl", gateway.KindFundamentals)
	require.NoError(t, err)
	assert.Equal(t, ProviderName, payload.Provider)
	assert.Equal(t, "AAPL", payload.Ticker)

	_, err = c.Fetch(context.Background(), "aapl", gateway.KindQuote)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedKind)
}

func TestParseQuotePage(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	ref := time.Date(2025, 8, 13, 9, 0, 0, 0, ny)

	f, err := ParseQuotePage("aapl", []byte(quotePage), ref)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", f.Ticker)
	assert.Equal(t, "Apple Inc", f.Company)
	assert.Equal(t, "Technology", f.Sector)
	assert.Equal(t, "Consumer Electronics", f.Industry)
	assert.Equal(t, "3373.60B", f.MarketCap)
	require.NotNil(t, f.EPSEstimate)
	assert.Equal(t, 1.43, *f.EPSEstimate)
	require.NotNil(t, f.Price)
	assert.Equal(t, 227.18, *f.Price)
	assert.True(t, f.HasEarningDate())
	assert.Equal(t, time.Date(2025, 8, 14, 0, 0, 0, 0, ny), f.EarningDate)
	assert.Equal(t, "AMC", f.EarningTime)
}

func TestParseQuotePageWithoutSnapshot(t *testing.T) {
	_, err := ParseQuotePage("AAPL", []byte(`<html><body>Not found</body></html>`), time.Now())
	assert.Error(t, err)
}

func TestParseEarnings(t *testing.T) {
	ref := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		value   string
		want    time.Time
		session string
		ok      bool
	}{
		{"Jan 28 AMC", time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC), "AMC", true}, // rolls into next year
		{"Dec 18 BMO", time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC), "BMO", true},
		{"Oct 30", time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC), "", true},
		{"-", time.Time{}, "", false},
		{"", time.Time{}, "", false},
		{"soon", time.Time{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, session, ok := ParseEarnings(tt.value, ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.session, session)
		})
	}
}

func TestParseNumber(t *testing.T) {
	assert.Nil(t, parseNumber("-"))
	assert.Nil(t, parseNumber("n/a"))
	assert.Equal(t, 1234.5, *parseNumber("1,234.5"))
	assert.Equal(t, -3.2, *parseNumber("-3.2%"))
}

func TestDecodeFundamentals(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	p := gateway.RawPayload{
		Ticker:    "AAPL",
		Body:      []byte(quotePage),
		FetchedAt: time.Date(2025, 8, 13, 14, 0, 0, 0, time.UTC),
	}

	f, err := DecodeFundamentals(p, ny)
	require.NoError(t, err)
	assert.Equal(t, ny, f.EarningDate.Location())
	assert.Equal(t, 14, f.EarningDate.Day())
}
