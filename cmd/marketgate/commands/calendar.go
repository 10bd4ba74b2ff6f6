package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/calendar"
	"github.com/wonny/marketgate/pkg/config"
)

// calendarCmd represents the calendar command
var calendarCmd = &cobra.Command{
	Use:   "calendar [date]",
	Short: "Show the working-day anchor and period windows",
	Long: `Prints whether a date is a working day, the anchor the earnings
windows start from and the 1D, 1W and 1M windows.

The date defaults to today in the market timezone.

Example:
  go run ./cmd/marketgate calendar
  go run ./cmd/marketgate calendar 2025-07-04`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCalendar,
}

func init() {
	rootCmd.AddCommand(calendarCmd)
}

func runCalendar(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cal, err := calendar.New(cfg.Calendar)
	if err != nil {
		return fmt.Errorf("build calendar: %w", err)
	}

	day := cal.Today()
	if len(args) == 1 {
		if day, err = calendar.ParseDate(cal, args[0]); err != nil {
			return err
		}
	}

	PrintHeader("Market calendar", cal.Now())
	PrintField("Date", day.Format(calendar.DateLayout))
	PrintField("Timezone", cal.Location())
	PrintField("Working", cal.IsWorkingDay(day))
	PrintField("Holiday", cal.IsHoliday(day))
	PrintField("Anchor", calendar.NextWorkingDay(cal, day).Format(calendar.DateLayout))
	if calendar.SameDate(day, cal.Today()) {
		PrintField("Session", calendar.SessionAt(cal, cal.Now()))
	}

	fmt.Println()
	windows := cache.Windows(cal, day)
	for _, p := range cache.AllPeriods {
		w := windows[p]
		fmt.Printf("  %-4s %s → %s\n", p, w.Start.Format(calendar.DateLayout), w.End.Format(calendar.DateLayout))
	}
	fmt.Println(rule)
	return nil
}
