package handlers

import (
	"net/http"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar"
)

// MarketHandler exposes the trading calendar
type MarketHandler struct {
	cal *calendar.MarketCalendar
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(cal *calendar.MarketCalendar) *MarketHandler {
	return &MarketHandler{cal: cal}
}

// windowResponse is a period window rendered as dates
type windowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Status returns working day info and the window of every period
// GET /api/market-status
func (h *MarketHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.cal.MarketStatus()

	windows := make(map[cache.Period]windowResponse, len(cache.AllPeriods))
	for p, win := range cache.Windows(h.cal, h.cal.Today()) {
		windows[p] = windowResponse{
			Start: win.Start.Format(calendar.DateLayout),
			End:   win.End.Format(calendar.DateLayout),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"market":  status,
		"windows": windows,
	})
}
