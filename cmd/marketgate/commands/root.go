package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marketgate",
	Short: "Earnings calendar service behind a governed market data gateway",
	Long: `marketgate CLI

Serves a date-keyed earnings summary computed from upstream market data
providers. Every provider call passes through one governor that paces,
backs off, retries and trips a circuit breaker on rate limiting.

Usage:
  go run ./cmd/marketgate [command]

Examples:
  go run ./cmd/marketgate serve
  go run ./cmd/marketgate warm
  go run ./cmd/marketgate fetch AAPL fundamentals
  go run ./cmd/marketgate calendar 2025-07-03`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags override the environment before config.Load reads it
		if cmd.Flags().Changed("env") {
			if err := os.Setenv("ENV", env); err != nil {
				return err
			}
		}
		if verbose {
			return os.Setenv("LOG_LEVEL", "debug")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
