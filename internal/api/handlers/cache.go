package handlers

import (
	"net/http"
	"strings"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/pkg/logger"
)

// CacheHandler exposes result cache administration
type CacheHandler struct {
	svc    *earnings.Service
	ts     calendar.TimeSource
	logger *logger.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(svc *earnings.Service, ts calendar.TimeSource, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		svc:    svc,
		ts:     ts,
		logger: log,
	}
}

// Status reports validity and per period counts
// GET /api/earning-cache/status
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Cache().Status())
}

// Clear drops every entry
// POST /api/earning-cache/clear
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n := h.svc.Cache().Clear(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "cleared",
		"removed": n,
	})
}

// Refresh recomputes the entry serving period (all periods share one)
// POST /api/earning-cache/refresh?period=all&sectors=Technology
func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	periods := cache.AllPeriods
	if p := r.URL.Query().Get("period"); p != "" && !strings.EqualFold(p, "all") {
		period, err := cache.ParsePeriod(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		periods = []cache.Period{period}
	}

	res, err := h.svc.Refresh(r.Context(), splitList(r.URL.Query().Get("sectors")))
	if err != nil {
		respondFailure(w, h.logger, err, h.ts.Now(), "Failed to refresh earnings cache")
		return
	}

	counts := make(map[cache.Period]int, len(periods))
	for _, p := range periods {
		window := cache.WindowFor(h.ts, h.ts.Today(), p)
		n := 0
		for _, rec := range res.Records {
			if window.Contains(rec.EarningDate) {
				n++
			}
		}
		counts[p] = n
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "refreshed",
		"scope":       res.Scope,
		"computed_at": res.ComputedAt,
		"periods":     counts,
	})
}
