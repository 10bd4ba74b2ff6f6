package governor

import (
	"sync"
	"time"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/pkg/logger"
)

// State is a circuit breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Outcome is the classified result of one upstream call
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
)

func (o Outcome) String() string {
	if o == OutcomeRateLimited {
		return "rate_limited"
	}
	return "success"
}

// Settings are the pacing and breaker parameters of one gate
type Settings struct {
	MinInterval      time.Duration
	BackoffBase      time.Duration
	BackoffCeiling   time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// gate holds the limiter and breaker state behind one mutex, so a reported
// outcome and the breaker transition it causes are never observed apart
type gate struct {
	mu       sync.Mutex
	clock    calendar.Clock
	settings Settings
	logger   *logger.Logger

	lastCallAt time.Time
	failures   int
	backoff    time.Duration
	state      State
	openedAt   time.Time

	granted     int64
	rejected    int64
	rateLimited int64
	succeeded   int64
}

func newGate(settings Settings, clock calendar.Clock, log *logger.Logger) *gate {
	return &gate{
		clock:    clock,
		settings: settings,
		logger:   log,
		state:    StateClosed,
	}
}

// reserve books the next call slot and returns how long the caller has to
// wait for it. Callers sleep after the lock is released.
func (g *gate) reserve() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.granted++

	if g.lastCallAt.IsZero() {
		g.lastCallAt = now
		return 0
	}

	next := g.lastCallAt.Add(g.settings.MinInterval + g.backoff)
	if !now.Before(next) {
		g.lastCallAt = now
		return 0
	}

	g.lastCallAt = next
	return next.Sub(now)
}

func (g *gate) report(outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	switch outcome {
	case OutcomeSuccess:
		g.succeeded++
		g.failures = 0
		g.backoff = 0
		if g.state != StateClosed {
			g.logger.WithField("from", string(g.state)).Info("Circuit breaker closed")
			g.state = StateClosed
			g.openedAt = time.Time{}
		}

	case OutcomeRateLimited:
		g.rateLimited++
		g.failures++
		g.backoff = backoffFor(g.settings, g.failures)

		log := g.logger.WithFields(map[string]interface{}{
			"consecutive_failures": g.failures,
			"backoff":              g.backoff.String(),
		})

		switch {
		case g.state == StateHalfOpen:
			g.state = StateOpen
			g.openedAt = now
			log.Warn("Circuit breaker re-opened after half-open probe was rate limited")
		case g.state == StateClosed && g.failures >= g.settings.BreakerThreshold:
			g.state = StateOpen
			g.openedAt = now
			log.Warn("Circuit breaker opened")
		default:
			log.Warn("Upstream rate limited, backing off")
		}
	}
}

// admit decides whether a call may proceed, moving OPEN to HALF_OPEN once
// the timeout has elapsed
func (g *gate) admit() *CircuitOpenError {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateOpen {
		return nil
	}

	now := g.clock.Now()
	retryAt := g.openedAt.Add(g.settings.BreakerTimeout)
	if !now.Before(retryAt) {
		g.state = StateHalfOpen
		g.logger.WithField("open_for", now.Sub(g.openedAt).String()).Info("Circuit breaker half-open")
		return nil
	}

	g.rejected++
	return &CircuitOpenError{OpenedAt: g.openedAt, RetryAt: retryAt}
}

func (g *gate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateClosed
	g.openedAt = time.Time{}
	g.failures = 0
	g.backoff = 0
	g.logger.Info("Circuit breaker reset")
}

func (g *gate) snapshot() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Status{
		ConsecutiveFailures: g.failures,
		CircuitOpen:         g.state == StateOpen,
		CircuitState:        g.state,
		MinInterval:         g.settings.MinInterval,
		CurrentBackoff:      g.backoff,
		BreakerThreshold:    g.settings.BreakerThreshold,
		BreakerTimeout:      g.settings.BreakerTimeout,
		Granted:             g.granted,
		Rejected:            g.rejected,
		RateLimited:         g.rateLimited,
		Succeeded:           g.succeeded,
	}
	if g.settings.MinInterval > 0 {
		s.CallsPerSecond = float64(time.Second) / float64(g.settings.MinInterval)
	}
	if !g.lastCallAt.IsZero() {
		t := g.lastCallAt
		s.LastCallAt = &t
	}
	if g.state == StateOpen {
		t := g.openedAt
		s.OpenedAt = &t
		r := g.openedAt.Add(g.settings.BreakerTimeout)
		s.RetryAt = &r
	}
	return s
}

func backoffFor(s Settings, failures int) time.Duration {
	if failures <= 0 || s.BackoffBase <= 0 {
		return 0
	}
	d := s.BackoffBase
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= s.BackoffCeiling {
			return s.BackoffCeiling
		}
	}
	return d
}
