package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/pkg/logger"
)

// DecodeFunc turns a provider payload into a response value
type DecodeFunc func(p gateway.RawPayload, loc *time.Location) (interface{}, error)

// StockHandler fetches provider data for one ticker through the governor
type StockHandler struct {
	gateway gateway.Gateway
	decode  DecodeFunc
	ts      calendar.TimeSource
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler. gw should be governed.
func NewStockHandler(gw gateway.Gateway, decode DecodeFunc, ts calendar.TimeSource, log *logger.Logger) *StockHandler {
	return &StockHandler{
		gateway: gw,
		decode:  decode,
		ts:      ts,
		logger:  log,
	}
}

// Fetch returns decoded provider data
// GET /api/stocks/{ticker}/{kind}  (kind: quote, prices, fundamentals)
func (h *StockHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ticker := strings.ToUpper(strings.TrimSpace(vars["ticker"]))
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	kind, err := gateway.ParseKind(vars["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := h.gateway.Fetch(r.Context(), ticker, kind)
	if err != nil {
		if errors.Is(err, gateway.ErrUnsupportedKind) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondFailure(w, h.logger.WithField("ticker", ticker), err, h.ts.Now(), "Failed to fetch provider data")
		return
	}

	data, err := h.decode(payload, h.ts.Location())
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to decode provider data")
		respondError(w, http.StatusBadGateway, "provider returned an unreadable response")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":     ticker,
		"kind":       kind,
		"provider":   payload.Provider,
		"fetched_at": payload.FetchedAt,
		"data":       data,
	})
}
