package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	dispatchLimit     int
	dispatchChannel   string
	dispatchDryRun    bool
	dispatchOverfetch int
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one dispatch pass over pending alert events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dispatchLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.DispatchOptions{
			Limit:     dispatchLimit,
			Channel:   dispatchChannel,
			DryRun:    dispatchDryRun,
			Overfetch: dispatchOverfetch,
		}

		return getApp().Dispatch(cmd.Context(), opts)
	},
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchLimit, "limit", 0, "Maximum events to process (defaults to config)")
	dispatchCmd.Flags().StringVar(&dispatchChannel, "channel", "", "Delivery channel (defaults to config)")
	dispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "Decide without writing deliveries or statuses")
	dispatchCmd.Flags().IntVar(&dispatchOverfetch, "overfetch", 0, "Candidate fetch multiplier (defaults to config)")
}
