package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketgate/internal/cache"
)

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:   "warm [sector...]",
	Short: "Pre-warm the result cache once",
	Long: `Computes today's 1M entry for the combined scope and for each sector,
then saves the cache to the configured snapshot store so a later serve
starts warm.

Without arguments the configured prewarm sectors are used.

Example:
  go run ./cmd/marketgate warm
  go run ./cmd/marketgate warm Technology Energy`,
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sectors := a.cfg.Cache.PrewarmSectors
	if len(args) > 0 {
		sectors = args
	}

	PrintHeader("Cache pre-warm", a.cal.Now())
	start := time.Now()

	report, warmErr := a.service.Prewarm(ctx, sectors)

	for _, scope := range report.Warmed {
		fmt.Printf("  ✓ %s\n", scope)
	}
	failed := make([]string, 0, len(report.Failed))
	for scope := range report.Failed {
		failed = append(failed, scope)
	}
	sort.Strings(failed)
	for _, scope := range failed {
		fmt.Printf("  ✗ %s: %s\n", scope, report.Failed[scope])
	}

	n, err := a.cache.SaveSnapshot(ctx)
	switch {
	case errors.Is(err, cache.ErrNoSnapshotStore):
		fmt.Println("\n  snapshot: disabled")
	case err != nil:
		a.log.WithError(err).Warn("Failed to save cache snapshot")
	default:
		fmt.Printf("\n  snapshot: %d entries saved\n", n)
	}

	PrintCompletion(time.Since(start), warmErr)
	return warmErr
}
