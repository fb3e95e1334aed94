package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	feedbackDays      int
	feedbackMinSample int
	feedbackOutDir    string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Aggregate feedback into per-segment tuning recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedbackDays < 0 {
			return fmt.Errorf("--days cannot be negative")
		}

		opts := app.FeedbackOptions{
			Days:      feedbackDays,
			MinSample: feedbackMinSample,
			OutDir:    feedbackOutDir,
		}

		return getApp().Feedback(cmd.Context(), opts)
	},
}

func init() {
	feedbackCmd.Flags().IntVar(&feedbackDays, "days", 0, "Trailing window in days (defaults to config)")
	feedbackCmd.Flags().IntVar(&feedbackMinSample, "min-sample", 0, "Minimum group size for a recommendation (defaults to config)")
	feedbackCmd.Flags().StringVar(&feedbackOutDir, "out", "", "Report output directory (defaults to config)")
}
