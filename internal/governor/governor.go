// Package governor shields upstream data providers from bursts: a shared
// rate limiter spaces calls, a circuit breaker stops calling after repeated
// throttling, and a retry policy composes the two around every call.
package governor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/logger"
)

// Governor is the one instance shared by every outbound call
// ⭐ SSOT: 외부 API 호출 제어는 이 인스턴스 하나로만
type Governor struct {
	g       *gate
	limiter *RateLimiter
	breaker *CircuitBreaker
	policy  *RetryPolicy
	clock   calendar.Clock
}

// Option customizes a Governor
type Option func(*options)

type options struct {
	sleeper Sleeper
}

// WithSleeper replaces the real timer, mainly for tests
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// Status is a point-in-time view of the governor
type Status struct {
	ConsecutiveFailures int
	CircuitOpen         bool
	CircuitState        State
	OpenedAt            *time.Time
	RetryAt             *time.Time
	CallsPerSecond      float64
	MinInterval         time.Duration
	CurrentBackoff      time.Duration
	LastCallAt          *time.Time
	BreakerThreshold    int
	BreakerTimeout      time.Duration

	Granted     int64
	Rejected    int64
	RateLimited int64
	Succeeded   int64
}

// New builds the governor from config
func New(cfg config.GovernorConfig, clock calendar.Clock, log *logger.Logger, opts ...Option) *Governor {
	o := options{sleeper: TimerSleeper}
	for _, opt := range opts {
		opt(&o)
	}

	log = log.WithComponent("governor")

	g := newGate(Settings{
		MinInterval:      cfg.MinInterval(),
		BackoffBase:      cfg.BackoffBase,
		BackoffCeiling:   cfg.BackoffCeiling,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerTimeout:   cfg.BreakerTimeout,
	}, clock, log)

	limiter := &RateLimiter{g: g, sleeper: o.sleeper}
	breaker := &CircuitBreaker{g: g}

	return &Governor{
		g:       g,
		limiter: limiter,
		breaker: breaker,
		clock:   clock,
		policy: &RetryPolicy{
			maxRetries:  cfg.MaxRetries,
			baseDelay:   cfg.RetryBaseDelay,
			callTimeout: cfg.CallTimeout,
			limiter:     limiter,
			breaker:     breaker,
			sleeper:     o.sleeper,
			logger:      log,
		},
	}
}

// Limiter returns the shared rate limiter
func (g *Governor) Limiter() *RateLimiter { return g.limiter }

// Breaker returns the shared circuit breaker
func (g *Governor) Breaker() *CircuitBreaker { return g.breaker }

// Policy returns the retry policy bound to this governor
func (g *Governor) Policy() *RetryPolicy { return g.policy }

// Execute runs call under the retry policy
func (g *Governor) Execute(ctx context.Context, call func(ctx context.Context) error) error {
	return g.policy.Execute(ctx, call)
}

// Status reports the limiter and breaker state
func (g *Governor) Status() Status {
	return g.g.snapshot()
}

// Reset closes the breaker and clears failures and backoff
func (g *Governor) Reset() {
	g.breaker.Reset()
}

// Now is the governor's clock reading
func (g *Governor) Now() time.Time {
	return g.clock.Now()
}

// Fields flattens Status for logging and JSON with durations in seconds
func (s Status) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"consecutive_failures":    s.ConsecutiveFailures,
		"circuit_open":            s.CircuitOpen,
		"circuit_state":           string(s.CircuitState),
		"calls_per_second":        s.CallsPerSecond,
		"min_interval_seconds":    s.MinInterval.Seconds(),
		"current_backoff":         s.CurrentBackoff.Seconds(),
		"breaker_threshold":       s.BreakerThreshold,
		"breaker_timeout_seconds": s.BreakerTimeout.Seconds(),
		"granted":                 s.Granted,
		"rejected":                s.Rejected,
		"rate_limited":            s.RateLimited,
		"succeeded":               s.Succeeded,
	}
	if s.LastCallAt != nil {
		fields["last_call_time"] = s.LastCallAt.Format(time.RFC3339Nano)
	}
	if s.OpenedAt != nil {
		fields["opened_at"] = s.OpenedAt.Format(time.RFC3339)
	}
	if s.RetryAt != nil {
		fields["retry_at"] = s.RetryAt.Format(time.RFC3339)
	}
	return fields
}

// MarshalJSON renders Fields
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}
