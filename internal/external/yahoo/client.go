package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
)

// ProviderName identifies Yahoo in payloads and logs
const ProviderName = "yahoo"

// Client handles communication with the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent(ProviderName),
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// Name implements gateway.Gateway
func (c *Client) Name() string { return ProviderName }

// Fetch implements gateway.Gateway. Quotes use one day of minute bars,
// price history one month of daily bars.
func (c *Client) Fetch(ctx context.Context, ticker string, kind gateway.Kind) (gateway.RawPayload, error) {
	params := url.Values{}
	switch kind {
	case gateway.KindQuote:
		params.Set("range", "1d")
		params.Set("interval", "1m")
		params.Set("includePrePost", "true")
	case gateway.KindPriceHistory:
		params.Set("range", "1mo")
		params.Set("interval", "1d")
	default:
		return gateway.RawPayload{}, fmt.Errorf("%w: %s does not serve %s", gateway.ErrUnsupportedKind, ProviderName, kind)
	}

	symbol := strings.ToUpper(ticker)
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	body, err := c.httpClient.Fetch(ctx, fullURL)
	if err != nil {
		return gateway.RawPayload{Provider: ProviderName}, fmt.Errorf("HTTP request failed: %w", err)
	}

	// The chart API reports unknown symbols inside a 200 body
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
		return gateway.RawPayload{Provider: ProviderName}, fmt.Errorf("yahoo chart error for %s: %s", symbol, desc.String())
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": symbol,
		"kind":   string(kind),
		"bytes":  len(body),
	}).Debug("Fetched chart")

	return gateway.RawPayload{
		Provider:  ProviderName,
		Ticker:    symbol,
		Kind:      kind,
		FetchedAt: c.now(),
		Body:      body,
	}, nil
}

// ParseQuote reads the latest price from a chart response
func ParseQuote(body []byte) (contracts.Quote, error) {
	meta := gjson.GetBytes(body, "chart.result.0.meta")
	if !meta.Exists() {
		return contracts.Quote{}, fmt.Errorf("chart response has no result meta")
	}

	price := meta.Get("regularMarketPrice")
	if !price.Exists() {
		return contracts.Quote{}, fmt.Errorf("chart response has no regularMarketPrice")
	}

	prev := meta.Get("chartPreviousClose")
	if !prev.Exists() {
		prev = meta.Get("previousClose")
	}

	q := contracts.Quote{
		Ticker:        meta.Get("symbol").String(),
		Price:         price.Float(),
		PreviousClose: prev.Float(),
		Currency:      meta.Get("currency").String(),
		Exchange:      meta.Get("exchangeName").String(),
	}
	if ts := meta.Get("regularMarketTime"); ts.Exists() {
		q.MarketTime = time.Unix(ts.Int(), 0).UTC()
	}
	return q, nil
}

// ParseBars reads OHLCV bars from a chart response, skipping null rows
func ParseBars(body []byte) ([]contracts.PriceBar, error) {
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("chart response has no result")
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]contracts.PriceBar, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i].Type == gjson.Null {
			continue
		}
		bars = append(bars, contracts.PriceBar{
			Date:   time.Unix(ts.Int(), 0).UTC(),
			Open:   at(opens, i).Float(),
			High:   at(highs, i).Float(),
			Low:    at(lows, i).Float(),
			Close:  closes[i].Float(),
			Volume: at(volumes, i).Int(),
		})
	}
	return bars, nil
}

func at(values []gjson.Result, i int) gjson.Result {
	if i < len(values) {
		return values[i]
	}
	return gjson.Result{}
}
