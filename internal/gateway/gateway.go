// Package gateway is the single door to upstream market data providers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/httputil"
)

// Kind is the type of data requested from a provider
type Kind string

const (
	KindPriceHistory Kind = "prices"
	KindQuote        Kind = "quote"
	KindFundamentals Kind = "fundamentals"
)

// ErrUnsupportedKind is returned when no provider serves a kind
var ErrUnsupportedKind = errors.New("unsupported data kind")

// ParseKind validates a user supplied kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPriceHistory, KindQuote, KindFundamentals:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// RawPayload is an undecoded provider response
type RawPayload struct {
	Provider  string
	Ticker    string
	Kind      Kind
	FetchedAt time.Time
	Body      []byte
}

// Gateway fetches raw data for one ticker
type Gateway interface {
	Name() string
	Fetch(ctx context.Context, ticker string, kind Kind) (RawPayload, error)
}

// Governed routes every Fetch through the governor's retry policy
// ⭐ SSOT: 외부 데이터 호출은 반드시 Governed를 거침
type Governed struct {
	inner Gateway
	gov   *governor.Governor
}

// Govern wraps inner so its calls are paced, retried and circuit broken
func Govern(inner Gateway, gov *governor.Governor) *Governed {
	return &Governed{inner: inner, gov: gov}
}

// Name returns the wrapped gateway name
func (g *Governed) Name() string { return g.inner.Name() }

// Fetch implements Gateway
func (g *Governed) Fetch(ctx context.Context, ticker string, kind Kind) (RawPayload, error) {
	return governor.Do(ctx, g.gov.Policy(), func(ctx context.Context) (RawPayload, error) {
		payload, err := g.inner.Fetch(ctx, ticker, kind)
		if err != nil {
			return RawPayload{}, Classify(g.providerFor(payload), err)
		}
		return payload, nil
	})
}

func (g *Governed) providerFor(p RawPayload) string {
	if p.Provider != "" {
		return p.Provider
	}
	return g.inner.Name()
}

// Classify turns transport throttling into a *governor.RateLimitSignal and
// leaves every other error as it is
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}

	var signal *governor.RateLimitSignal
	if errors.As(err, &signal) {
		return err
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.RateLimited() {
		return &governor.RateLimitSignal{
			Provider:   provider,
			RetryAfter: statusErr.RetryAfter,
			Cause:      err,
		}
	}
	return err
}
