package finviz

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
)

// ProviderName identifies Finviz in payloads and logs
const ProviderName = "finviz"

// Snapshot table labels
const (
	labelEarnings  = "Earnings"
	labelEPSNextQ  = "EPS next Q"
	labelPrice     = "Price"
	labelMarketCap = "Market Cap"
)

// Client scrapes the Finviz quote page
// ⭐ SSOT: Finviz 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Finviz client
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

// Fetch implements gateway.Gateway; only fundamentals are served
func (c *Client) Fetch(ctx context.Context, ticker string, kind gateway.Kind) (gateway.RawPayload, error) {
	if kind != gateway.KindFundamentals {
		return gateway.RawPayload{}, fmt.Errorf("%w: %s does not serve %s", gateway.ErrUnsupportedKind, ProviderName, kind)
	}

	symbol := strings.ToUpper(ticker)
	params := url.Values{}
	params.Set("t", symbol)
	params.Set("p", "d")

	body, err := c.httpClient.Fetch(ctx, c.baseURL+"/quote.ashx?"+params.Encode())
	if err != nil {
		return gateway.RawPayload{Provider: ProviderName}, fmt.Errorf("HTTP request failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": symbol,
		"bytes":  len(body),
	}).Debug("Fetched quote page")

	return gateway.RawPayload{
		Provider:  ProviderName,
		Ticker:    symbol,
		Kind:      kind,
		FetchedAt: c.now(),
		Body:      body,
	}, nil
}

// DecodeFundamentals parses a fundamentals payload in the market location
func DecodeFundamentals(p gateway.RawPayload, loc *time.Location) (contracts.Fundamentals, error) {
	ref := p.FetchedAt
	if ref.IsZero() {
		ref = time.Now()
	}
	return ParseQuotePage(p.Ticker, p.Body, ref.In(loc))
}

// ParseQuotePage extracts fundamentals from the quote page HTML.
// The earnings cell carries no year, so it is resolved against ref.
func ParseQuotePage(ticker string, body []byte, ref time.Time) (contracts.Fundamentals, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return contracts.Fundamentals{}, fmt.Errorf("failed to parse quote page: %w", err)
	}

	snapshot := snapshotTable(doc)
	if len(snapshot) == 0 {
		return contracts.Fundamentals{}, fmt.Errorf("quote page for %s has no snapshot table", ticker)
	}

	f := contracts.Fundamentals{
		Ticker:      strings.ToUpper(ticker),
		Company:     strings.TrimSpace(doc.Find(".quote-header_ticker-wrapper_company").First().Text()),
		Sector:      strings.TrimSpace(doc.Find(`a[href*="f=sec_"]`).First().Text()),
		Industry:    strings.TrimSpace(doc.Find(`a[href*="f=ind_"]`).First().Text()),
		EPSEstimate: parseNumber(snapshot[labelEPSNextQ]),
		Price:       parseNumber(snapshot[labelPrice]),
		MarketCap:   cleanValue(snapshot[labelMarketCap]),
	}

	if date, session, ok := ParseEarnings(snapshot[labelEarnings], ref); ok {
		f.EarningDate = date
		f.EarningTime = session
	}

	return f, nil
}

// snapshotTable reads label/value cell pairs from the snapshot grid
func snapshotTable(doc *goquery.Document) map[string]string {
	values := make(map[string]string)
	doc.Find("table.snapshot-table2 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			if label == "" {
				continue
			}
			values[label] = strings.TrimSpace(cells.Eq(i + 1).Text())
		}
	})
	return values
}

// ParseEarnings parses cells like "Aug 13 AMC" or "Oct 30 BMO" and picks
// the year that puts the date closest to ref
func ParseEarnings(value string, ref time.Time) (time.Time, string, bool) {
	fields := strings.Fields(cleanValue(value))
	if len(fields) < 2 {
		return time.Time{}, "", false
	}

	md, err := time.Parse("Jan 2", fields[0]+" "+fields[1])
	if err != nil {
		return time.Time{}, "", false
	}

	var best time.Time
	for _, year := range []int{ref.Year() - 1, ref.Year(), ref.Year() + 1} {
		candidate := time.Date(year, md.Month(), md.Day(), 0, 0, 0, 0, ref.Location())
		if best.IsZero() || absDuration(candidate.Sub(ref)) < absDuration(best.Sub(ref)) {
			best = candidate
		}
	}

	session := ""
	if len(fields) > 2 {
		session = strings.ToUpper(fields[2])
	}
	return best, session, true
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "-" {
		return ""
	}
	return v
}

func parseNumber(v string) *float64 {
	v = strings.NewReplacer(",", "", "%", "").Replace(cleanValue(v))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
