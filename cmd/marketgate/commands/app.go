package commands

import (
	"context"
	"fmt"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/cache/snapshot"
	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/internal/external/finviz"
	"github.com/wonny/marketgate/internal/external/tiingo"
	"github.com/wonny/marketgate/internal/external/yahoo"
	"github.com/wonny/marketgate/internal/gateway"
	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/database"
	"github.com/wonny/marketgate/pkg/httputil"
	"github.com/wonny/marketgate/pkg/logger"
	"github.com/wonny/marketgate/pkg/redis"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	cal     *calendar.MarketCalendar
	gov     *governor.Governor
	gateway *gateway.Governed
	cache   *cache.ResultCache
	service *earnings.Service

	db      *database.DB
	closers []func()
}

// newApp loads config and wires calendar, governor, providers, cache and
// the earnings service. Call Close when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg: cfg,
		log: logger.New(cfg),
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cal, err := calendar.New(a.cfg.Calendar)
	if err != nil {
		return fmt.Errorf("build calendar: %w", err)
	}
	a.cal = cal

	a.gov = governor.New(a.cfg.Governor, cal, a.log.WithComponent("governor"))
	a.gateway = gateway.Govern(a.providers(), a.gov)

	universe, err := a.universe(ctx)
	if err != nil {
		return err
	}

	var opts []cache.Option
	store, err := a.snapshotStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, cache.WithSnapshotStore(store))
	}
	a.cache = cache.New(cal, a.log.WithComponent("cache"), opts...)

	a.service = earnings.NewService(universe, a.gateway, finviz.DecodeFundamentals, a.cache, cal, a.log.WithComponent("earnings"))

	a.log.WithFields(map[string]interface{}{
		"env":      a.cfg.Env,
		"gateway":  a.gateway.Name(),
		"universe": a.cfg.Universe.Source,
		"snapshot": a.cfg.Cache.SnapshotBackend,
	}).Info("Application wired")
	return nil
}

// providers routes each data kind to one provider. Price history prefers
// Tiingo when a key is configured.
func (a *app) providers() *gateway.Router {
	httpClient := httputil.New(a.cfg, a.log.WithComponent("http"))

	yahooClient := yahoo.NewClient(httpClient, a.cfg.Yahoo.BaseURL, a.log)
	finvizClient := finviz.NewClient(httpClient, a.cfg.Finviz.BaseURL, a.log)
	tiingoClient := tiingo.NewClient(httpClient, a.cfg.Tiingo.BaseURL, a.cfg.Tiingo.APIKey, a.cfg.Tiingo.RequestsPerSecond, a.log)

	var prices gateway.Gateway = yahooClient
	if tiingoClient.Available() {
		prices = tiingoClient
	}

	return gateway.NewRouter(map[gateway.Kind]gateway.Gateway{
		gateway.KindPriceHistory: prices,
		gateway.KindQuote:        yahooClient,
		gateway.KindFundamentals: finvizClient,
	})
}

func (a *app) universe(ctx context.Context) (contracts.UniverseSource, error) {
	switch a.cfg.Universe.Source {
	case config.UniversePostgres:
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		u, err := earnings.NewPostgresUniverse(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("open postgres universe: %w", err)
		}
		return u, nil
	default:
		u, err := earnings.LoadFileUniverse(a.cfg.Universe.Path)
		if err != nil {
			return nil, fmt.Errorf("load universe: %w", err)
		}
		a.log.WithFields(map[string]interface{}{
			"path":    a.cfg.Universe.Path,
			"tickers": u.Len(),
		}).Info("Loaded ticker universe")
		return u, nil
	}
}

func (a *app) snapshotStore(ctx context.Context) (cache.SnapshotStore, error) {
	switch a.cfg.Cache.SnapshotBackend {
	case config.SnapshotFile:
		return snapshot.NewFileStore(a.cfg.Cache.SnapshotPath), nil
	case config.SnapshotRedis:
		client, err := redis.New(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return snapshot.NewRedisStore(redis.NewCache(client, "marketgate")), nil
	case config.SnapshotPostgres:
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		store, err := snapshot.NewPostgresStore(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("open postgres snapshot store: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// database connects once; universe and snapshot store may share the pool
func (a *app) database() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.log.Info("Connected to database")
	return db, nil
}

// Close releases connections in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
