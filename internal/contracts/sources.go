package contracts

import "context"

// UniverseSource lists the tickers covered by the earnings summary
type UniverseSource interface {
	// ListStocks returns every stock, or only those in sectors when given
	ListStocks(ctx context.Context, sectors []string) ([]Stock, error)
}
