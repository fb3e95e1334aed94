package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"signal-alerts/internal/feedback"
	"signal-alerts/internal/report"
	"signal-alerts/internal/storage"
)

// Feedback aggregates the trailing feedback window into per-segment tuning
// recommendations and writes Markdown/CSV reports. Report writing is
// best-effort; the summary metrics line is always emitted.
func (a *App) Feedback(ctx context.Context, opts FeedbackOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot aggregate feedback")
	}
	if closeStore != nil {
		defer closeStore()
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Feedback.WindowDays
	}
	minSample := opts.MinSample
	if minSample <= 0 {
		minSample = a.Config.Feedback.MinSample
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = a.Config.Report.OutputDir
	}

	rows, index, err := a.loadFeedbackWindow(ctx, store, days)
	if err != nil {
		return err
	}

	aggregator := feedback.NewAggregator(feedback.Policy{MinSample: minSample})
	aggregates, summary := aggregator.Aggregate(rows, index)

	if len(aggregates) > a.Config.Report.MaxRows {
		aggregates = aggregates[:a.Config.Report.MaxRows]
	}

	mdPath := filepath.Join(outDir, "feedback_tuning.md")
	if err := report.WriteFeedbackMarkdown(mdPath, aggregates, summary); err != nil {
		a.Logger.Error().Err(err).Str("path", mdPath).Msg("write feedback markdown failed")
	}
	csvPath := filepath.Join(outDir, "feedback_tuning.csv")
	if err := report.WriteFeedbackCSV(csvPath, aggregates); err != nil {
		a.Logger.Error().Err(err).Str("path", csvPath).Msg("write feedback csv failed")
	}

	a.Logger.Info().
		Int("days", days).
		Int("total", summary.Total).
		Int("useful", summary.Useful).
		Int("noise", summary.Noise).
		Float64("noise_ratio", summary.NoiseRatio).
		Int("segments", summary.Segments).
		Msg("feedback aggregation complete")

	return nil
}

// loadFeedbackWindow reads feedback for the trailing window and resolves
// the originating events into an index.
func (a *App) loadFeedbackWindow(ctx context.Context, store *storage.Store, days int) ([]storage.FeedbackRecord, feedback.EventIndex, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := store.ListFeedbackSince(ctx, since)
	if err != nil {
		if storage.IsSchemaMissing(err) {
			a.Logger.Warn().Err(err).Msg("alert_feedback table missing; run migrations, nothing to aggregate")
			return nil, feedback.EventIndex{}, nil
		}
		return nil, nil, fmt.Errorf("list feedback: %w", err)
	}

	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.AlertID]; ok {
			continue
		}
		seen[row.AlertID] = struct{}{}
		ids = append(ids, row.AlertID)
	}

	events, err := store.ListAlertEventsByIDs(ctx, ids)
	if err != nil {
		// Degrade to the UNKNOWN fallback segment rather than aborting.
		a.Logger.Error().Err(err).Msg("resolve feedback events failed; using fallback segments")
		return rows, feedback.EventIndex{}, nil
	}

	return rows, feedback.BuildEventIndex(events), nil
}
