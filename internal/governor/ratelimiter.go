package governor

import (
	"context"
	"time"
)

// Sleeper suspends the calling goroutine. Implementations must return early
// with ctx.Err() when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper blocks on a real timer
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// RateLimiter spaces calls at least MinInterval plus the current backoff apart
type RateLimiter struct {
	g       *gate
	sleeper Sleeper
}

// Acquire blocks until the caller may make its call and returns how long it
// waited. The slot is reserved under the gate lock, then the lock is
// released before sleeping, so concurrent callers queue behind each other
// instead of being dropped. A cancelled ctx aborts the wait; the reserved
// slot is not handed back.
func (r *RateLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	wait := r.g.reserve()
	if wait <= 0 {
		return 0, ctx.Err()
	}
	if err := r.sleeper.Sleep(ctx, wait); err != nil {
		return wait, err
	}
	return wait, nil
}

// ReportOutcome feeds a call result back into the backoff and breaker state
func (r *RateLimiter) ReportOutcome(outcome Outcome) {
	r.g.report(outcome)
}

// ConsecutiveFailures is the current run of rate-limited outcomes
func (r *RateLimiter) ConsecutiveFailures() int {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.g.failures
}

// CurrentBackoff is the extra spacing added on top of MinInterval
func (r *RateLimiter) CurrentBackoff() time.Duration {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.g.backoff
}
