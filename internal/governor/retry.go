package governor

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/marketgate/pkg/logger"
)

// GatedCall is one upstream invocation guarded by the governor
type GatedCall[T any] func(ctx context.Context) (T, error)

// RetryPolicy retries rate-limited calls with exponential delay.
// Every attempt goes through the breaker and the limiter first.
type RetryPolicy struct {
	maxRetries  int
	baseDelay   time.Duration
	callTimeout time.Duration

	limiter *RateLimiter
	breaker *CircuitBreaker
	sleeper Sleeper
	logger  *logger.Logger
}

// MaxRetries is the number of retries after the first attempt
func (p *RetryPolicy) MaxRetries() int { return p.maxRetries }

// DelayFor is the pause before retry number attempt+1
func (p *RetryPolicy) DelayFor(attempt int) time.Duration {
	return p.baseDelay * time.Duration(1<<uint(attempt))
}

// Execute runs call with up to MaxRetries+1 attempts.
//
//   - breaker rejects: *CircuitOpenError, upstream not contacted
//   - call succeeds: success reported, nil returned
//   - call returns a *RateLimitSignal: failure reported, retried after
//     DelayFor(attempt); *RetryExhaustedError once attempts run out
//   - any other error: *UpstreamError at once, nothing reported
func (p *RetryPolicy) Execute(ctx context.Context, call func(ctx context.Context) error) error {
	var last *RateLimitSignal

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if open := p.breaker.g.admit(); open != nil {
			return open
		}

		if _, err := p.limiter.Acquire(ctx); err != nil {
			return err
		}

		err := p.invoke(ctx, call)
		if err == nil {
			p.limiter.ReportOutcome(OutcomeSuccess)
			return nil
		}

		var signal *RateLimitSignal
		if !errors.As(err, &signal) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &UpstreamError{Cause: err}
		}

		p.limiter.ReportOutcome(OutcomeRateLimited)
		last = signal

		if attempt == p.maxRetries {
			break
		}

		delay := p.DelayFor(attempt)
		p.logger.WithFields(map[string]interface{}{
			"attempt":  attempt + 1,
			"delay":    delay.String(),
			"provider": signal.Provider,
		}).Warn("Rate limited, retrying")

		if err := p.sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"attempts": p.maxRetries + 1,
		"provider": last.Provider,
	}).Error("Rate limit retries exhausted")

	return &RetryExhaustedError{Attempts: p.maxRetries + 1, Last: last}
}

func (p *RetryPolicy) invoke(ctx context.Context, call func(ctx context.Context) error) error {
	if p.callTimeout <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return call(callCtx)
}

// Do runs a value-returning call through the policy
func Do[T any](ctx context.Context, p *RetryPolicy, call GatedCall[T]) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := call(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
