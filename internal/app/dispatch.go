package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-alerts/internal/dispatch"
	"signal-alerts/internal/storage"
)

// Dispatch executes a single dispatch pass over pending alert events.
func (a *App) Dispatch(ctx context.Context, opts DispatchOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot dispatch")
	}
	if closeStore != nil {
		defer closeStore()
	}

	channel := opts.Channel
	if channel == "" {
		channel = a.Config.Dispatch.Channel
	}
	overfetch := opts.Overfetch
	if overfetch <= 0 {
		overfetch = a.Config.Dispatch.Overfetch
	}

	startedAt := time.Now().UTC()
	runID := fmt.Sprintf("dispatch-%s", startedAt.Format("20060102T150405Z"))

	engine := dispatch.NewEngine(store, store, a.Logger)
	result, err := engine.Run(ctx, dispatch.Options{
		RunID:     runID,
		Limit:     a.Config.ResolveLimit(opts.Limit),
		Channel:   channel,
		DryRun:    opts.DryRun,
		Overfetch: overfetch,
	})
	if err != nil {
		return err
	}

	if !opts.DryRun {
		a.recordRun(ctx, store, storage.RunMetrics{
			RunID:      runID,
			Component:  "dispatch",
			Pending:    result.Pending,
			Sent:       result.Sent,
			Deduped:    result.Deduped,
			Failed:     result.Failed,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
		})
	}

	return nil
}

// recordRun persists and publishes run counters best-effort.
func (a *App) recordRun(ctx context.Context, store storage.RunMetricsStore, m storage.RunMetrics) {
	if err := store.InsertRunMetrics(ctx, m); err != nil {
		a.Logger.Error().Err(err).Str("component", m.Component).Msg("persist run metrics failed")
	}
	if err := a.newPublisher().PublishRun(ctx, m); err != nil {
		a.Logger.Error().Err(err).Str("component", m.Component).Msg("publish run metrics failed")
	}
}
