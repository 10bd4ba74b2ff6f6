package tiingo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
)

// ProviderName identifies Tiingo in payloads and logs
const ProviderName = "tiingo"

// historyDays is how far back price history reaches
const historyDays = 30

// ErrNoAPIKey is returned when the client is used without credentials
var ErrNoAPIKey = errors.New("tiingo api key not configured")

// Client handles communication with the Tiingo REST API
// ⭐ SSOT: Tiingo API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter // provider's own 1 req/s floor, beneath the governor
	now        func() time.Time
}

// NewClient creates a new Tiingo client
func NewClient(httpClient *httputil.Client, baseURL, apiKey string, requestsPerSecond float64, log *logger.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent(ProviderName),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		now:        time.Now,
	}
}

// Available reports whether an API key is configured
func (c *Client) Available() bool { return c.apiKey != "" }

// Name implements gateway.Gateway
func (c *Client) Name() string { return ProviderName }

// Fetch implements gateway.Gateway
func (c *Client) Fetch(ctx context.Context, ticker string, kind gateway.Kind) (gateway.RawPayload, error) {
	if !c.Available() {
		return gateway.RawPayload{Provider: ProviderName}, ErrNoAPIKey
	}

	symbol := strings.ToLower(ticker)
	params := url.Values{}
	var path string

	switch kind {
	case gateway.KindPriceHistory:
		now := c.now()
		params.Set("startDate", now.AddDate(0, 0, -historyDays).Format("2006-01-02"))
		params.Set("endDate", now.Format("2006-01-02"))
		path = fmt.Sprintf("/tiingo/daily/%s/prices", url.PathEscape(symbol))
	case gateway.KindQuote:
		params.Set("tickers", symbol)
		path = "/iex/"
	default:
		return gateway.RawPayload{}, fmt.Errorf("%w: %s does not serve %s", gateway.ErrUnsupportedKind, ProviderName, kind)
	}
	params.Set("token", c.apiKey)

	if err := c.limiter.Wait(ctx); err != nil {
		return gateway.RawPayload{Provider: ProviderName}, fmt.Errorf("tiingo pacing wait failed: %w", err)
	}

	body, err := c.httpClient.Fetch(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return gateway.RawPayload{Provider: ProviderName}, fmt.Errorf("HTTP request failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": symbol,
		"kind":   string(kind),
		"bytes":  len(body),
	}).Debug("Fetched tiingo data")

	return gateway.RawPayload{
		Provider:  ProviderName,
		Ticker:    strings.ToUpper(ticker),
		Kind:      kind,
		FetchedAt: c.now(),
		Body:      body,
	}, nil
}

type dailyPrice struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type iexQuote struct {
	Ticker    string    `json:"ticker"`
	Last      *float64  `json:"last"`
	TngoLast  *float64  `json:"tngoLast"`
	PrevClose float64   `json:"prevClose"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseBars decodes the daily prices endpoint
func ParseBars(body []byte) ([]contracts.PriceBar, error) {
	var rows []dailyPrice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode tiingo prices: %w", err)
	}

	bars := make([]contracts.PriceBar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, contracts.PriceBar{
			Date:   r.Date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

// ParseQuote decodes the IEX top-of-book endpoint
func ParseQuote(body []byte) (contracts.Quote, error) {
	var rows []iexQuote
	if err := json.Unmarshal(body, &rows); err != nil {
		return contracts.Quote{}, fmt.Errorf("failed to decode tiingo quote: %w", err)
	}
	if len(rows) == 0 {
		return contracts.Quote{}, fmt.Errorf("tiingo quote response is empty")
	}

	r := rows[0]
	price := r.TngoLast
	if price == nil {
		price = r.Last
	}
	if price == nil {
		return contracts.Quote{}, fmt.Errorf("tiingo quote for %s has no last price", r.Ticker)
	}

	return contracts.Quote{
		Ticker:        strings.ToUpper(r.Ticker),
		Price:         *price,
		PreviousClose: r.PrevClose,
		Currency:      "USD",
		Exchange:      "IEX",
		MarketTime:    r.Timestamp,
	}, nil
}
