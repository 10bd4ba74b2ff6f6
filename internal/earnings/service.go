// Package earnings builds the upcoming earnings summary from the ticker
// universe and provider fundamentals, served through the result cache.
package earnings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/logger"
)

// DefaultConcurrency bounds in-flight fundamentals fetches per compute.
// The governor still paces the calls themselves.
const DefaultConcurrency = 4

// Decoder turns a fundamentals payload into structured fields
type Decoder func(p gateway.RawPayload, loc *time.Location) (contracts.Fundamentals, error)

// Service computes and serves earnings summaries
// ⭐ SSOT: 실적 요약 계산은 여기서만
type Service struct {
	universe    contracts.UniverseSource
	gateway     gateway.Gateway
	decode      Decoder
	cache       *cache.ResultCache
	ts          calendar.TimeSource
	logger      *logger.Logger
	concurrency int
}

// Option customizes a Service
type Option func(*Service)

// WithConcurrency overrides DefaultConcurrency
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService wires the summary pipeline. gw should already be governed.
func NewService(universe contracts.UniverseSource, gw gateway.Gateway, decode Decoder, rc *cache.ResultCache, ts calendar.TimeSource, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		universe:    universe,
		gateway:     gw,
		decode:      decode,
		cache:       rc,
		ts:          ts,
		logger:      log.WithComponent("earnings"),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the result cache for admin operations
func (s *Service) Cache() *cache.ResultCache { return s.cache }

// Compute lists the universe for scope, fetches fundamentals for every
// ticker and keeps those reporting inside window. It satisfies
// cache.ComputeFunc.
//
// An unavailable upstream aborts the whole compute; any other per-ticker
// failure is logged and the ticker skipped.
func (s *Service) Compute(ctx context.Context, scope string, window cache.PeriodWindow) ([]contracts.EarningRecord, error) {
	stocks, err := s.universe.ListStocks(ctx, cache.SectorsOf(scope))
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}

	var (
		mu      sync.Mutex
		records []contracts.EarningRecord
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, stock := range stocks {
		stock := stock
		g.Go(func() error {
			record, ok, err := s.recordFor(gctx, stock, window)
			if err != nil {
				if governor.IsUnavailable(err) || gctx.Err() != nil {
					return err
				}
				s.logger.WithError(err).WithField("ticker", stock.Ticker).Warn("Skipping ticker")
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if ok {
				mu.Lock()
				records = append(records, record)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	sortRecords(records)

	s.logger.WithFields(map[string]interface{}{
		"scope":    scope,
		"window":   window.String(),
		"universe": len(stocks),
		"records":  len(records),
		"skipped":  skipped,
	}).Info("Computed earnings summary")

	return records, nil
}

func (s *Service) recordFor(ctx context.Context, stock contracts.Stock, window cache.PeriodWindow) (contracts.EarningRecord, bool, error) {
	payload, err := s.gateway.Fetch(ctx, stock.Ticker, gateway.KindFundamentals)
	if err != nil {
		return contracts.EarningRecord{}, false, err
	}

	f, err := s.decode(payload, s.ts.Location())
	if err != nil {
		return contracts.EarningRecord{}, false, fmt.Errorf("decode %s: %w", stock.Ticker, err)
	}
	if !f.HasEarningDate() || !window.Contains(f.EarningDate) {
		return contracts.EarningRecord{}, false, nil
	}

	return contracts.EarningRecord{
		Ticker:      strings.ToUpper(stock.Ticker),
		CompanyName: firstNonEmpty(stock.Company, f.Company),
		Sector:      firstNonEmpty(stock.Sector, f.Sector, "Unknown"),
		EarningDate: calendar.Date(f.EarningDate.In(s.ts.Location())),
		EarningTime: f.EarningTime,
		EPSEstimate: f.EPSEstimate,
		Price:       f.Price,
		MarketCap:   f.MarketCap,
	}, true, nil
}

// Query selects one page of the summary
type Query struct {
	Sectors []string
	Period  cache.Period
	From    time.Time // optional, narrows the period window
	To      time.Time // optional, narrows the period window
	Page    int
	PerPage int
}

// Summary is one page of upcoming earnings
type Summary struct {
	Scope      string                    `json:"scope"`
	Period     cache.Period              `json:"period"`
	From       string                    `json:"from"`
	To         string                    `json:"to"`
	CacheDate  string                    `json:"cache_date"`
	Page       int                       `json:"page"`
	PerPage    int                       `json:"per_page"`
	Total      int                       `json:"total"`
	TotalPages int                       `json:"total_pages"`
	Results    []contracts.EarningRecord `json:"results"`
	Stale      bool                      `json:"stale"`
}

// Summary serves q from the cache, computing on a miss. When the upstream
// is unavailable an earlier day's entry is served marked stale.
func (s *Service) Summary(ctx context.Context, q Query) (Summary, error) {
	if q.Period == "" {
		q.Period = cache.Period1W
	}
	scope := cache.ScopeFor(q.Sectors)

	res, err := s.cache.GetOrCompute(ctx, scope, q.Period, s.Compute)
	if err != nil {
		if !governor.IsUnavailable(err) {
			return Summary{}, err
		}
		stale, ok := s.cache.Peek(scope, q.Period)
		if !ok {
			return Summary{}, err
		}
		s.logger.WithError(err).WithField("scope", scope).Warn("Serving stale earnings summary")
		res = stale
	}

	window, narrowed := narrow(res.Window, q.From, q.To)
	records := res.Records
	if narrowed {
		records = filterRecords(records, window)
	}

	page := cache.Paginate(records, q.Page, q.PerPage)
	return Summary{
		Scope:      scope,
		Period:     q.Period,
		From:       window.Start.Format(calendar.DateLayout),
		To:         window.End.Format(calendar.DateLayout),
		CacheDate:  res.CacheDate.Format(calendar.DateLayout),
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages,
		Results:    page.Results,
		Stale:      res.Stale,
	}, nil
}

// Refresh recomputes scope's entry regardless of the cache
func (s *Service) Refresh(ctx context.Context, sectors []string) (cache.Result, error) {
	return s.cache.ForceRefresh(ctx, cache.ScopeFor(sectors), cache.Period1M, s.Compute)
}

// PrewarmReport lists which scopes were computed
type PrewarmReport struct {
	Warmed []string          `json:"warmed"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Prewarm fills the cache for every sector combined and then each sector
// on its own. Failures are collected; the rest keep going.
func (s *Service) Prewarm(ctx context.Context, sectors []string) (PrewarmReport, error) {
	scopes := []string{cache.ScopeAll}
	for _, sector := range sectors {
		if scope := cache.ScopeFor([]string{sector}); scope != cache.ScopeAll {
			scopes = append(scopes, scope)
		}
	}

	var (
		mu     sync.Mutex
		report = PrewarmReport{Failed: make(map[string]string)}
		errs   []error
	)

	// The combined scope goes first so sector scopes find a closed breaker
	if _, err := s.cache.GetOrCompute(ctx, cache.ScopeAll, cache.Period1M, s.Compute); err != nil {
		report.Failed[cache.ScopeAll] = err.Error()
		errs = append(errs, fmt.Errorf("%s: %w", cache.ScopeAll, err))
	} else {
		report.Warmed = append(report.Warmed, cache.ScopeAll)
	}

	var g errgroup.Group
	g.SetLimit(2)
	for _, scope := range scopes[1:] {
		scope := scope
		g.Go(func() error {
			_, err := s.cache.GetOrCompute(ctx, scope, cache.Period1M, s.Compute)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[scope] = err.Error()
				errs = append(errs, fmt.Errorf("%s: %w", scope, err))
				return nil
			}
			report.Warmed = append(report.Warmed, scope)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Warmed)

	s.logger.WithFields(map[string]interface{}{
		"warmed": len(report.Warmed),
		"failed": len(report.Failed),
	}).Info("Cache prewarm finished")

	return report, errors.Join(errs...)
}

// Sectors lists the distinct sectors of the universe
func (s *Service) Sectors(ctx context.Context) ([]string, error) {
	stocks, err := s.universe.ListStocks(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}

	seen := make(map[string]struct{})
	var sectors []string
	for _, st := range stocks {
		if st.Sector == "" {
			continue
		}
		if _, ok := seen[st.Sector]; ok {
			continue
		}
		seen[st.Sector] = struct{}{}
		sectors = append(sectors, st.Sector)
	}
	sort.Strings(sectors)
	return sectors, nil
}

// narrow intersects w with the optional [from, to] bounds
func narrow(w cache.PeriodWindow, from, to time.Time) (cache.PeriodWindow, bool) {
	loc := w.Start.Location()
	changed := false
	if !from.IsZero() {
		if d := calendar.Date(from.In(loc)); d.After(w.Start) {
			w.Start = d
			changed = true
		}
	}
	if !to.IsZero() {
		if d := calendar.Date(to.In(loc)); d.Before(w.End) {
			w.End = d
			changed = true
		}
	}
	return w, changed
}

func filterRecords(records []contracts.EarningRecord, w cache.PeriodWindow) []contracts.EarningRecord {
	out := make([]contracts.EarningRecord, 0, len(records))
	for _, r := range records {
		if w.Contains(r.EarningDate) {
			out = append(out, r)
		}
	}
	return out
}

// sortRecords orders by earnings date, then ticker
func sortRecords(records []contracts.EarningRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].EarningDate.Equal(records[j].EarningDate) {
			return records[i].EarningDate.Before(records[j].EarningDate)
		}
		return records[i].Ticker < records[j].Ticker
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
