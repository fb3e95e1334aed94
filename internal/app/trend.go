package app

import (
	"context"
	"errors"
	"path/filepath"

	"signal-alerts/internal/feedback"
	"signal-alerts/internal/report"
)

// Trend builds the daily noise series over the trailing window, ranks the
// noisiest segments, and writes a CSV report.
func (a *App) Trend(ctx context.Context, opts TrendOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot build trend")
	}
	if closeStore != nil {
		defer closeStore()
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Feedback.WindowDays
	}
	top := opts.Top
	if top <= 0 {
		top = a.Config.Feedback.TopNoisy
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = a.Config.Report.OutputDir
	}

	rows, index, err := a.loadFeedbackWindow(ctx, store, days)
	if err != nil {
		return err
	}

	series, segments := feedback.BuildTrend(rows, index, days, top)

	csvPath := filepath.Join(outDir, "noise_trend.csv")
	if err := report.WriteTrendCSV(csvPath, series); err != nil {
		a.Logger.Error().Err(err).Str("path", csvPath).Msg("write trend csv failed")
	}
	segPath := filepath.Join(outDir, "noisy_segments.csv")
	if err := report.WriteFeedbackCSV(segPath, segments); err != nil {
		a.Logger.Error().Err(err).Str("path", segPath).Msg("write noisy segments csv failed")
	}

	var noisiest string
	if len(segments) > 0 {
		noisiest = segments[0].Ticker + ":" + segments[0].SignalType
	}

	a.Logger.Info().
		Int("days", days).
		Int("points", len(series)).
		Int("segments", len(segments)).
		Str("noisiest", noisiest).
		Msg("noise trend complete")

	return nil
}
