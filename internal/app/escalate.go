package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-alerts/internal/escalation"
	"signal-alerts/internal/storage"
)

// Escalate executes a single escalation pass: load the cooldown ledger,
// gate fresh alert events, send what passes, save the ledger. Concurrent
// passes against the same ledger path are unsafe; the scheduler's advisory
// lock is bypassed here, so one-shot runs must not overlap the service.
func (a *App) Escalate(ctx context.Context, opts EscalateOptions) error {
	if !a.Config.Escalation.Enabled {
		return errors.New("escalation 未启用")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot escalate")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cooldownMinutes := opts.CooldownMinutes
	if cooldownMinutes <= 0 {
		cooldownMinutes = a.Config.Escalation.CooldownMinutes
	}
	limit := a.Config.ResolveLimit(opts.Limit)

	events, err := store.ListPendingAlertEvents(ctx, limit*a.Config.Dispatch.Overfetch)
	if err != nil {
		if storage.IsSchemaMissing(err) {
			a.Logger.Warn().Err(err).Msg("alert_events table missing; run migrations, nothing to escalate")
			return nil
		}
		return fmt.Errorf("list events for escalation: %w", err)
	}
	if len(events) == 0 {
		a.Logger.Info().Msg("no fresh alert events to escalate")
		return nil
	}

	ledger, err := escalation.LoadLedger(a.Config.Escalation.LedgerPath)
	if err != nil {
		return fmt.Errorf("load cooldown ledger: %w", err)
	}

	runner := escalation.NewRunner(a.newNotifier(), time.Duration(cooldownMinutes)*time.Minute, a.Logger)
	startedAt := time.Now().UTC()
	result := runner.Process(ctx, ledger, escalation.BuildCandidates(events), opts.DryRun)

	if err := ledger.Save(a.Config.Escalation.LedgerPath); err != nil {
		return fmt.Errorf("save cooldown ledger: %w", err)
	}

	if !opts.DryRun {
		a.recordRun(ctx, store, storage.RunMetrics{
			RunID:      fmt.Sprintf("escalate-%s", startedAt.Format("20060102T150405Z")),
			Component:  "escalation",
			Pending:    result.Considered,
			Sent:       result.Sent,
			Deduped:    result.Skipped,
			Failed:     result.Failed,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
		})
	}

	return nil
}
