package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"signal-alerts/internal/config"
	"signal-alerts/internal/dispatch"
	"signal-alerts/internal/escalation"
	"signal-alerts/internal/metrics"
	"signal-alerts/internal/scheduler"
	"signal-alerts/internal/service"
	"signal-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newNotifier() escalation.Notifier {
	if !a.Config.Escalation.Enabled || a.Config.Escalation.WebhookURL == "" {
		return nil
	}
	return escalation.NewWebhookNotifier(
		a.Config.Escalation.WebhookURL,
		a.Config.Escalation.RequestTimeout,
		a.Logger,
	)
}

func (a *App) newRunner() *escalation.Runner {
	cooldown := time.Duration(a.Config.Escalation.CooldownMinutes) * time.Minute
	return escalation.NewRunner(a.newNotifier(), cooldown, a.Logger)
}

func (a *App) newPublisher() metrics.Publisher {
	if a.Config.Redis.URL == "" {
		return metrics.NopPublisher{}
	}
	publisher, err := metrics.NewRedisPublisher(a.Config.Redis.URL, a.Config.Redis.TTL)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("redis unavailable; run metrics publishing disabled")
		return metrics.NopPublisher{}
	}
	return publisher
}

// Run executes the long-running lifecycle service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the lifecycle service requires persistence")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	engine := dispatch.NewEngine(store, store, a.Logger)
	svc := service.New(a.Config, sched, engine, a.newRunner(), store, store, a.newPublisher(), a.Logger)

	a.Logger.Info().Msg("starting alert lifecycle service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert lifecycle service stopped")
	return nil
}

// DispatchOptions configure a one-shot dispatch pass.
type DispatchOptions struct {
	Limit     int
	Channel   string
	DryRun    bool
	Overfetch int
}

// EscalateOptions configure a one-shot escalation pass.
type EscalateOptions struct {
	CooldownMinutes int
	DryRun          bool
	Limit           int
}

// FeedbackOptions configure the feedback aggregation report.
type FeedbackOptions struct {
	Days      int
	MinSample int
	OutDir    string
}

// TrendOptions configure the noise trend report.
type TrendOptions struct {
	Days   int
	Top    int
	OutDir string
}

// KPIOptions configure the KPI gate evaluation.
type KPIOptions struct {
	Days   int
	OutDir string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions configure the trend export.
type ExportOptions struct {
	Days    int
	CSVPath string
	PNGPath string
}
