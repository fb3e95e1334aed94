package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	escalateCooldown int
	escalateDryRun   bool
	escalateLimit    int
)

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation pass through the cooldown gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if escalateCooldown < 0 {
			return fmt.Errorf("--cooldown-minutes cannot be negative")
		}

		opts := app.EscalateOptions{
			CooldownMinutes: escalateCooldown,
			DryRun:          escalateDryRun,
			Limit:           escalateLimit,
		}

		return getApp().Escalate(cmd.Context(), opts)
	},
}

func init() {
	escalateCmd.Flags().IntVar(&escalateCooldown, "cooldown-minutes", 0, "Cooldown window in minutes (defaults to config)")
	escalateCmd.Flags().BoolVar(&escalateDryRun, "dry-run", false, "Decide and record the ledger without sending webhooks")
	escalateCmd.Flags().IntVar(&escalateLimit, "limit", 0, "Maximum events to consider (defaults to config)")
}
