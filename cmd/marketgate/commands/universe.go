package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/database"
	"github.com/wonny/marketgate/pkg/logger"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage the ticker universe",
	Long: `Inspects the ticker universe or copies the YAML file into PostgreSQL
for deployments that run with UNIVERSE_SOURCE=postgres.

Subcommands:
  list  - print the tickers of the YAML file
  sync  - upsert the YAML file into data.stocks

Example:
  go run ./cmd/marketgate universe list
  go run ./cmd/marketgate universe sync --file stocks.yaml`,
}

var (
	universeFile string

	universeListCmd = &cobra.Command{
		Use:   "list",
		Short: "Print the tickers of the YAML universe",
		RunE:  listUniverse,
	}

	universeSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Upsert the YAML universe into PostgreSQL",
		RunE:  syncUniverse,
	}
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeListCmd)
	universeCmd.AddCommand(universeSyncCmd)

	universeCmd.PersistentFlags().StringVar(&universeFile, "file", "", "universe YAML file (overrides UNIVERSE_PATH)")
}

func loadUniverseFile(cfg *config.Config) (*earnings.FileUniverse, error) {
	path := cfg.Universe.Path
	if universeFile != "" {
		path = universeFile
	}
	u, err := earnings.LoadFileUniverse(path)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return u, nil
}

func listUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	u, err := loadUniverseFile(cfg)
	if err != nil {
		return err
	}

	stocks, err := u.ListStocks(cmd.Context(), nil)
	if err != nil {
		return err
	}
	for _, s := range stocks {
		fmt.Printf("  %-6s %-24s %s\n", s.Ticker, s.Sector, s.Company)
	}
	fmt.Printf("\n  %d tickers\n", len(stocks))
	return nil
}

func syncUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	u, err := loadUniverseFile(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stocks, err := u.ListStocks(ctx, nil)
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	pg, err := earnings.NewPostgresUniverse(ctx, db)
	if err != nil {
		return fmt.Errorf("open postgres universe: %w", err)
	}
	if err := pg.Upsert(ctx, stocks); err != nil {
		return fmt.Errorf("upsert universe: %w", err)
	}

	log.WithField("tickers", len(stocks)).Info("Universe synced to postgres")
	fmt.Printf("✅ %d tickers synced\n", len(stocks))
	return nil
}
