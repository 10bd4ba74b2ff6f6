package governor

// CircuitBreaker derives its state from the limiter's failure count.
// Transitions happen lazily inside AllowCall and ReportOutcome; nothing
// runs in the background.
type CircuitBreaker struct {
	g *gate
}

// AllowCall reports whether a call may proceed. A rejection does not count
// as a failure.
func (b *CircuitBreaker) AllowCall() bool {
	return b.g.admit() == nil
}

// State returns the current breaker state without forcing a transition
func (b *CircuitBreaker) State() State {
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	return b.g.state
}

// Reset forces the breaker CLOSED and clears failures and backoff
func (b *CircuitBreaker) Reset() {
	b.g.reset()
}
