package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketgate/internal/api/handlers"
	"github.com/wonny/marketgate/pkg/database"
	"github.com/wonny/marketgate/pkg/logger"
)

// DatabaseHealth is implemented by *database.DB
type DatabaseHealth interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Handlers groups everything the router serves. Scheduler and Database may be nil.
type Handlers struct {
	Governor  *handlers.GovernorHandler
	Cache     *handlers.CacheHandler
	Earnings  *handlers.EarningsHandler
	Market    *handlers.MarketHandler
	Stock     *handlers.StockHandler
	Scheduler *handlers.SchedulerHandler
	Database  DatabaseHealth
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, adminToken string, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.Database)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Upstream governor
	api.HandleFunc("/rate-limiter/status", h.Governor.Status).Methods("GET")
	api.HandleFunc("/rate-limiter-status", h.Governor.Status).Methods("GET")
	api.HandleFunc("/rate-limiter/reset", adminOnly(adminToken, h.Governor.Reset)).Methods("POST")

	// Result cache
	api.HandleFunc("/earning-cache/status", h.Cache.Status).Methods("GET")
	api.HandleFunc("/earning-cache/clear", adminOnly(adminToken, h.Cache.Clear)).Methods("POST")
	api.HandleFunc("/earning-cache/refresh", adminOnly(adminToken, h.Cache.Refresh)).Methods("POST")

	// Earnings summary
	api.HandleFunc("/earnings", h.Earnings.List).Methods("GET")
	api.HandleFunc("/sectors", h.Earnings.Sectors).Methods("GET")

	// Calendar
	api.HandleFunc("/market-status", h.Market.Status).Methods("GET")

	// Provider data
	api.HandleFunc("/stocks/{ticker}/{kind}", adminOnly(adminToken, h.Stock.Fetch)).Methods("GET")

	if h.Scheduler != nil {
		api.HandleFunc("/scheduler/jobs", h.Scheduler.Jobs).Methods("GET")
		api.HandleFunc("/scheduler/jobs/{name}/run", adminOnly(adminToken, h.Scheduler.Run)).Methods("POST")
	}

	// Streams
	r.HandleFunc("/ws/governor", h.Governor.Stream).Methods("GET")

	// Apply middleware
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status, degraded when the
// database does not answer
func healthCheckHandler(db DatabaseHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "marketgate",
		}
		code := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			status, err := db.HealthCheck(ctx)
			cancel()
			body["database"] = status
			if err != nil {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
