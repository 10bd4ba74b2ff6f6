package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondFailure maps a service error to a status code. An unavailable
// upstream answers 503 with Retry-After when the wait is known.
func respondFailure(w http.ResponseWriter, log *logger.Logger, err error, now time.Time, message string) {
	switch {
	case governor.IsUnavailable(err):
		if d := governor.RetryAfter(err, now); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
		log.WithError(err).Warn(message)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":  "upstream data provider temporarily unavailable",
			"detail": err.Error(),
		})
	default:
		log.WithError(err).Error(message)
		respondError(w, http.StatusInternalServerError, message)
	}
}
