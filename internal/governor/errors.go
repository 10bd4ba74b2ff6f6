package governor

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks
var (
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrRetryExhausted = errors.New("rate limit retries exhausted")
)

// RateLimitSignal is the classified form of an upstream "too many requests"
// answer. Only this error kind is retried and counted as a failure.
type RateLimitSignal struct {
	Provider   string
	RetryAfter time.Duration // hint from the upstream, 0 when absent
	Cause      error
}

func (e *RateLimitSignal) Error() string {
	msg := "rate limited"
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RateLimitSignal) Unwrap() error { return e.Cause }

// CircuitOpenError is returned without contacting the upstream while the
// breaker is OPEN
type CircuitOpenError struct {
	OpenedAt time.Time
	RetryAt  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open until %s", e.RetryAt.Format(time.RFC3339))
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// RetryExhaustedError reports that every attempt was rate limited
type RetryExhaustedError struct {
	Attempts int
	Last     *RateLimitSignal
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("rate limited on all %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }

// UpstreamError wraps any failure that is not a rate-limit signal.
// It is surfaced immediately and never touches the breaker.
type UpstreamError struct {
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream call failed: %v", e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// IsUnavailable reports whether err means the upstream is being shielded,
// either by an open breaker or by exhausted rate-limit retries
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRetryExhausted)
}

// RetryAfter suggests how long a client should wait before trying again
func RetryAfter(err error, now time.Time) time.Duration {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		if d := open.RetryAt.Sub(now); d > 0 {
			return d
		}
		return 0
	}

	var signal *RateLimitSignal
	if errors.As(err, &signal) {
		return signal.RetryAfter
	}
	return 0
}
