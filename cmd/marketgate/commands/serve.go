package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketgate/internal/api"
	"github.com/wonny/marketgate/internal/api/handlers"
	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/external"
	"github.com/wonny/marketgate/internal/scheduler"
	"github.com/wonny/marketgate/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and scheduler",
	Long: `Starts the HTTP API server together with the cron scheduler.

On start the result cache is restored from the configured snapshot store
and optionally pre-warmed in the background. On shutdown the cache is
saved back.

Endpoints:
  GET  /health
  GET  /api/earnings?period=1W&sectors=Technology
  GET  /api/sectors
  GET  /api/market-status
  GET  /api/rate-limiter/status
  POST /api/rate-limiter/reset          (admin)
  GET  /api/earning-cache/status
  POST /api/earning-cache/clear         (admin)
  POST /api/earning-cache/refresh       (admin)
  GET  /api/stocks/{ticker}/{kind}      (admin)
  GET  /api/scheduler/jobs
  POST /api/scheduler/jobs/{name}/run   (admin)
  GET  /ws/governor

Example:
  go run ./cmd/marketgate serve
  go run ./cmd/marketgate serve --port 9000 --prewarm=false`,
	RunE: runServe,
}

var (
	servePort    string
	servePrewarm bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
	serveCmd.Flags().BoolVar(&servePrewarm, "prewarm", true, "pre-warm the cache in the background after start")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}
	log := a.log

	// 1. Restore today's entries
	if n, err := a.cache.LoadSnapshot(ctx); err != nil && !errors.Is(err, cache.ErrNoSnapshotStore) {
		log.WithError(err).Warn("Failed to load cache snapshot")
	} else if n > 0 {
		log.WithField("entries", n).Info("Cache restored from snapshot")
	}

	// 2. Scheduler
	sched := scheduler.New(log.WithComponent("scheduler"), a.cal.Location())
	for _, job := range []scheduler.Job{
		jobs.NewCachePrewarmJob(a.service, a.cfg.Cache.PrewarmSectors, a.cfg.Cache.PrewarmSchedule, log),
		jobs.NewCacheSnapshotJob(a.cache, log),
		jobs.NewGovernorReportJob(a.gov, log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// 3. HTTP API
	var dbHealth api.DatabaseHealth
	if a.db != nil {
		dbHealth = a.db
	}
	router := api.NewRouter(api.Handlers{
		Governor:  handlers.NewGovernorHandler(a.gov, log.WithComponent("governor")),
		Cache:     handlers.NewCacheHandler(a.service, a.cal, log),
		Earnings:  handlers.NewEarningsHandler(a.service, a.cal, log),
		Market:    handlers.NewMarketHandler(a.cal),
		Stock:     handlers.NewStockHandler(a.gateway, external.Decode, a.cal, log),
		Scheduler: handlers.NewSchedulerHandler(sched),
		Database:  dbHealth,
	}, a.cfg.AdminToken, log)
	server := api.New(a.cfg, log, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	if servePrewarm {
		go func() {
			report, err := a.service.Prewarm(ctx, a.cfg.Cache.PrewarmSectors)
			l := log.WithFields(map[string]interface{}{
				"warmed": len(report.Warmed),
				"failed": len(report.Failed),
			})
			if err != nil {
				l.WithError(err).Warn("Startup pre-warm incomplete")
				return
			}
			l.Info("Startup pre-warm complete")
		}()
	}

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	if n, err := a.cache.SaveSnapshot(shutdownCtx); err != nil && !errors.Is(err, cache.ErrNoSnapshotStore) {
		log.WithError(err).Warn("Failed to save cache snapshot")
	} else if n > 0 {
		log.WithField("entries", n).Info("Cache snapshot saved")
	}

	log.Info("Server stopped")
	return nil
}
