package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketgate/internal/external"
	"github.com/wonny/marketgate/internal/gateway"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [ticker] [kind]",
	Short: "Make one governed provider call",
	Long: `Fetches one payload through the governor and prints its size, the
decoded value and the governor status afterwards.

Kinds: quote, prices, fundamentals

Example:
  go run ./cmd/marketgate fetch AAPL fundamentals
  go run ./cmd/marketgate fetch MSFT quote --raw`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

var fetchRaw bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchRaw, "raw", false, "print the raw body instead of the decoded value")
}

func runFetch(cmd *cobra.Command, args []string) error {
	kind, err := gateway.ParseKind(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader(fmt.Sprintf("Fetch %s %s", args[0], kind), a.cal.Now())
	start := time.Now()

	payload, fetchErr := a.gateway.Fetch(ctx, args[0], kind)
	if fetchErr == nil {
		PrintField("Provider", payload.Provider)
		PrintField("Bytes", len(payload.Body))

		if fetchRaw {
			fmt.Println(string(payload.Body))
		} else if data, err := external.Decode(payload, a.cal.Location()); err != nil {
			PrintField("Decode", err)
		} else {
			out, _ := json.MarshalIndent(data, "  ", "  ")
			fmt.Printf("  %s\n", out)
		}
	}

	fmt.Println("\n  Governor:")
	fields := a.gov.Status().Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("    %-24s %v\n", k, fields[k])
	}

	PrintCompletion(time.Since(start), fetchErr)
	return fetchErr
}
