package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	kpiDays   int
	kpiOutDir string
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Evaluate daily KPIs against the service-level gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if kpiDays < 0 {
			return fmt.Errorf("--days cannot be negative")
		}

		opts := app.KPIOptions{
			Days:   kpiDays,
			OutDir: kpiOutDir,
		}

		return getApp().KPI(cmd.Context(), opts)
	},
}

func init() {
	kpiCmd.Flags().IntVar(&kpiDays, "days", 0, "Trailing window in days (defaults to config)")
	kpiCmd.Flags().StringVar(&kpiOutDir, "out", "", "Report output directory (defaults to config)")
}
