// Package external holds the upstream provider clients and decodes their
// raw payloads into contracts types.
package external

import (
	"fmt"
	"time"

	"github.com/wonny/marketgate/internal/external/finviz"
	"github.com/wonny/marketgate/internal/external/tiingo"
	"github.com/wonny/marketgate/internal/external/yahoo"
	"github.com/wonny/marketgate/internal/gateway"
)

// Decode parses p with the parser of the provider that produced it.
// Quotes decode to contracts.Quote, prices to []contracts.PriceBar and
// fundamentals to contracts.Fundamentals.
func Decode(p gateway.RawPayload, loc *time.Location) (interface{}, error) {
	switch p.Provider {
	case yahoo.ProviderName:
		switch p.Kind {
		case gateway.KindQuote:
			return yahoo.ParseQuote(p.Body)
		case gateway.KindPriceHistory:
			return yahoo.ParseBars(p.Body)
		}
	case tiingo.ProviderName:
		switch p.Kind {
		case gateway.KindQuote:
			return tiingo.ParseQuote(p.Body)
		case gateway.KindPriceHistory:
			return tiingo.ParseBars(p.Body)
		}
	case finviz.ProviderName:
		if p.Kind == gateway.KindFundamentals {
			return finviz.DecodeFundamentals(p, loc)
		}
	}
	return nil, fmt.Errorf("%w: no decoder for %s %s", gateway.ErrUnsupportedKind, p.Provider, p.Kind)
}
