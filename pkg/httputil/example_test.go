package httputil_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
)

// Example_fetch demonstrates a body fetch with throttle classification
func Example_fetch() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create HTTP client (SSOT)
	client := httputil.NewWithTimeout(cfg, log, 10*time.Second)

	body, err := client.Fetch(context.Background(), "https://api.example.com/data")
	var statusErr *httputil.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.RateLimited():
		fmt.Printf("Throttled, retry after %s\n", statusErr.RetryAfter)
	case err != nil:
		fmt.Printf("Request failed: %v\n", err)
	default:
		fmt.Printf("Read %d bytes\n", len(body))
	}
}
