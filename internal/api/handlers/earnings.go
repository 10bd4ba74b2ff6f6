package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/pkg/logger"
)

// EarningsHandler serves the upcoming earnings summary
// ⭐ SSOT: 실적 요약 API는 이 핸들러에서만
type EarningsHandler struct {
	svc    *earnings.Service
	ts     calendar.TimeSource
	logger *logger.Logger
}

// NewEarningsHandler creates a new earnings handler
func NewEarningsHandler(svc *earnings.Service, ts calendar.TimeSource, log *logger.Logger) *EarningsHandler {
	return &EarningsHandler{
		svc:    svc,
		ts:     ts,
		logger: log,
	}
}

// List returns one page of the summary
// GET /api/earnings?period=1W&sectors=Technology,Energy&page=1&per_page=10&date_from=&date_to=
func (h *EarningsHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.Summary(r.Context(), q)
	if err != nil {
		respondFailure(w, h.logger, err, h.ts.Now(), "Failed to build earnings summary")
		return
	}

	if summary.Stale {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	}
	respondJSON(w, http.StatusOK, summary)
}

// Sectors lists the sectors of the universe
// GET /api/sectors
func (h *EarningsHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.svc.Sectors(r.Context())
	if err != nil {
		respondFailure(w, h.logger, err, h.ts.Now(), "Failed to list sectors")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sectors": sectors,
		"count":   len(sectors),
	})
}

func (h *EarningsHandler) parseQuery(r *http.Request) (earnings.Query, error) {
	params := r.URL.Query()
	q := earnings.Query{
		Period:  cache.Period1W,
		Sectors: splitList(params.Get("sectors")),
	}

	if p := params.Get("period"); p != "" {
		period, err := cache.ParsePeriod(p)
		if err != nil {
			return q, err
		}
		q.Period = period
	}

	var err error
	if q.Page, err = intParam(params.Get("page")); err != nil {
		return q, fmt.Errorf("invalid page: %w", err)
	}
	if q.PerPage, err = intParam(params.Get("per_page")); err != nil {
		return q, fmt.Errorf("invalid per_page: %w", err)
	}
	if q.From, err = dateParam(h.ts, params.Get("date_from")); err != nil {
		return q, fmt.Errorf("invalid date_from: %w", err)
	}
	if q.To, err = dateParam(h.ts, params.Get("date_to")); err != nil {
		return q, fmt.Errorf("invalid date_to: %w", err)
	}
	return q, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func dateParam(ts calendar.TimeSource, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return calendar.ParseDate(ts, v)
}
