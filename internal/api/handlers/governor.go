package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/logger"
)

const (
	streamInterval = 2 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	writeWait      = 10 * time.Second
)

// GovernorHandler exposes the upstream call governor
// ⭐ SSOT: 호출 제어 상태 API는 이 핸들러에서만
type GovernorHandler struct {
	gov      *governor.Governor
	logger   *logger.Logger
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewGovernorHandler creates a new governor handler
func NewGovernorHandler(gov *governor.Governor, log *logger.Logger) *GovernorHandler {
	return &GovernorHandler{
		gov:    gov,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: streamInterval,
	}
}

// WithStreamInterval changes how often Stream pushes a status
func (h *GovernorHandler) WithStreamInterval(d time.Duration) *GovernorHandler {
	if d > 0 {
		h.interval = d
	}
	return h
}

// Status returns the limiter and breaker state
// GET /api/rate-limiter/status
func (h *GovernorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gov.Status())
}

// Reset closes the circuit and clears the backoff
// POST /api/rate-limiter/reset
func (h *GovernorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.gov.Reset()
	h.logger.Info("Governor reset by admin")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reset",
		"governor": h.gov.Status(),
	})
}

// Stream pushes the status over a websocket until the client leaves
// GET /ws/governor
func (h *GovernorHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reader: handles pongs and notices the client going away
	done := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := time.NewTicker(h.interval)
	defer push.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(h.gov.Status())
	}

	if err := send(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-push.C:
			if err := send(); err != nil {
				h.logger.WithError(err).Debug("Governor stream closed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
