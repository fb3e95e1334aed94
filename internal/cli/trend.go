package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	trendDays   int
	trendTop    int
	trendOutDir string
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Build the daily noise trend and rank noisy segments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trendDays < 0 {
			return fmt.Errorf("--days cannot be negative")
		}

		opts := app.TrendOptions{
			Days:   trendDays,
			Top:    trendTop,
			OutDir: trendOutDir,
		}

		return getApp().Trend(cmd.Context(), opts)
	},
}

func init() {
	trendCmd.Flags().IntVar(&trendDays, "days", 0, "Trailing window in days (defaults to config)")
	trendCmd.Flags().IntVar(&trendTop, "top", 0, "Number of noisy segments to keep (defaults to config)")
	trendCmd.Flags().StringVar(&trendOutDir, "out", "", "Report output directory (defaults to config)")
}
