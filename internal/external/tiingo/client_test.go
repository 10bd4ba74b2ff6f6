package tiingo

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

func newTestClient(baseURL, key string) *Client {
	c := NewClient(httputil.New(&config.Config{}, logger.Nop()), baseURL, key, 1000, logger.Nop())
	c.now = func() time.Time { return time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchPriceHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tiingo/daily/aapl/prices", r.URL.Path)
		assert.Equal(t, "2025-07-14", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2025-08-13", r.URL.Query().Get("endDate"))
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Write([]byte(`[{"date":"2025-08-12T00:00:00.000Z","open":220,"high":225,"low":219,"close":224.5,"volume":51000000}]`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL, "secret").Fetch(context.Background(), "AAPL", gateway.KindPriceHistory)
	require.NoError(t, err)
	assert.Equal(t, ProviderName, payload.Provider)
	assert.Equal(t, "AAPL", payload.Ticker)

	bars, err := ParseBars(payload.Body)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 224.5, bars[0].Close)
	assert.Equal(t, int64(51000000), bars[0].Volume)
}

func TestFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/iex/", r.URL.Path)
		assert.Equal(t, "msft", r.URL.Query().Get("tickers"))
		w.Write([]byte(`[{"ticker":"msft","last":null,"tngoLast":521.7,"prevClose":520,"timestamp":"2025-08-13T15:59:59Z"}]`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL, "secret").Fetch(context.Background(), "MSFT", gateway.KindQuote)
	require.NoError(t, err)

	q, err := ParseQuote(payload.Body)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Ticker)
	assert.Equal(t, 521.7, q.Price)
	assert.Equal(t, 520.0, q.PreviousClose)
}

func TestFetchWithoutKey(t *testing.T) {
	c := newTestClient("http://unused", "")
	assert.False(t, c.Available())

	_, err := c.Fetch(context.Background(), "AAPL", gateway.KindQuote)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestFetchUnsupportedKind(t *testing.T) {
	_, err := newTestClient("http://unused", "secret").Fetch(context.Background(), "AAPL", gateway.KindFundamentals)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedKind)
}

func TestFetchHonoursContext(t *testing.T) {
	c := NewClient(httputil.New(&config.Config{}, logger.Nop()), "http://unused", "secret", 0.001, logger.Nop())
	// Drain the single burst token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "AAPL", gateway.KindQuote)
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := ParseBars([]byte(`{"detail":"Not found."}`))
	assert.Error(t, err)

	_, err = ParseQuote([]byte(`[]`))
	assert.Error(t, err)

	_, err = ParseQuote([]byte(`[{"ticker":"x","last":null,"tngoLast":null}]`))
	assert.Error(t, err)
}
