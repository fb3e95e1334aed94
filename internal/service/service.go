package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-alerts/internal/config"
	"signal-alerts/internal/dispatch"
	"signal-alerts/internal/escalation"
	"signal-alerts/internal/metrics"
	"signal-alerts/internal/scheduler"
	"signal-alerts/internal/storage"
)

// Service orchestrates dispatch and escalation for each scheduling tick.
type Service struct {
	scheduler  *scheduler.Scheduler
	engine     *dispatch.Engine
	runner     *escalation.Runner
	events     storage.AlertEventStore
	runMetrics storage.RunMetricsStore
	publisher  metrics.Publisher
	logger     zerolog.Logger

	channel    string
	limit      int
	overfetch  int
	ledgerPath string
	escalateOn bool
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// New constructs the lifecycle service.
func New(cfg *config.Config, sched *scheduler.Scheduler, engine *dispatch.Engine, runner *escalation.Runner, events storage.AlertEventStore, runMetrics storage.RunMetricsStore, publisher metrics.Publisher, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := events.(storage.AdvisoryLocker); ok {
		locker = l
	}
	if publisher == nil {
		publisher = metrics.NopPublisher{}
	}

	return &Service{
		scheduler:  sched,
		engine:     engine,
		runner:     runner,
		events:     events,
		runMetrics: runMetrics,
		publisher:  publisher,
		logger:     logger.With().Str("component", "service").Logger(),
		channel:    cfg.Dispatch.Channel,
		limit:      cfg.Dispatch.Limit,
		overfetch:  cfg.Dispatch.Overfetch,
		ledgerPath: cfg.Escalation.LedgerPath,
		escalateOn: cfg.Escalation.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned tick loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单个调度周期：先升级判定，再投递派发。
// The advisory lock serializes overlapping ticks: dispatch correctness only
// needs the store's unique dedupe-key constraint, but the cooldown ledger
// file has no concurrent-writer protection and requires a single active run.
func (s *Service) ProcessTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, bucket)
}

func (s *Service) executeTick(ctx context.Context, bucket time.Time) error {
	runID := fmt.Sprintf("tick-%s", bucket.UTC().Format("20060102T150405Z"))
	startedAt := time.Now().UTC()

	if s.escalateOn && s.runner != nil {
		if err := s.runEscalation(ctx, runID); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("escalation pass failed")
		}
	}

	result, err := s.engine.Run(ctx, dispatch.Options{
		RunID:     runID,
		Limit:     s.limit,
		Channel:   s.channel,
		Overfetch: s.overfetch,
	})
	if err != nil {
		return fmt.Errorf("dispatch pass: %w", err)
	}

	s.recordRun(ctx, storage.RunMetrics{
		RunID:      runID,
		Component:  "dispatch",
		Pending:    result.Pending,
		Sent:       result.Sent,
		Deduped:    result.Deduped,
		Failed:     result.Failed,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	})

	return nil
}

func (s *Service) runEscalation(ctx context.Context, runID string) error {
	events, err := s.events.ListPendingAlertEvents(ctx, s.limit*s.overfetch)
	if err != nil {
		if storage.IsSchemaMissing(err) {
			s.logger.Warn().Err(err).Msg("alert_events table missing; run migrations, skipping escalation")
			return nil
		}
		return fmt.Errorf("list events for escalation: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	ledger, err := escalation.LoadLedger(s.ledgerPath)
	if err != nil {
		return fmt.Errorf("load cooldown ledger: %w", err)
	}

	result := s.runner.Process(ctx, ledger, escalation.BuildCandidates(events), false)

	if err := ledger.Save(s.ledgerPath); err != nil {
		return fmt.Errorf("save cooldown ledger: %w", err)
	}

	s.recordRun(ctx, storage.RunMetrics{
		RunID:      runID,
		Component:  "escalation",
		Pending:    result.Considered,
		Sent:       result.Sent,
		Deduped:    result.Skipped,
		Failed:     result.Failed,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	})

	return nil
}

// recordRun persists and publishes run counters best-effort.
func (s *Service) recordRun(ctx context.Context, m storage.RunMetrics) {
	if s.runMetrics != nil {
		if err := s.runMetrics.InsertRunMetrics(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("component", m.Component).Msg("persist run metrics failed")
		}
	}
	if err := s.publisher.PublishRun(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("component", m.Component).Msg("publish run metrics failed")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
