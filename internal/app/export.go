package app

import (
	"context"
	"errors"

	"signal-alerts/internal/feedback"
	"signal-alerts/internal/report"
)

// Export renders the daily noise trend as CSV and/or PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Feedback.WindowDays
	}

	rows, index, err := a.loadFeedbackWindow(ctx, store, days)
	if err != nil {
		return err
	}

	series, _ := feedback.BuildTrend(rows, index, days, a.Config.Feedback.TopNoisy)
	if len(series) == 0 {
		a.Logger.Info().Msg("no feedback found for export window")
		return nil
	}

	a.Logger.Info().Int("days", days).Int("points", len(series)).Msg("exporting noise trend")

	if opts.CSVPath != "" {
		if err := report.WriteTrendCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := report.WriteTrendPNG(opts.PNGPath, series); err != nil {
			return err
		}
	}

	return nil
}
