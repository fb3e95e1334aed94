package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"signal-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Feedback   FeedbackConfig   `mapstructure:"feedback"`
	KPI        KPIConfig        `mapstructure:"kpi"`
	Report     ReportConfig     `mapstructure:"report"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig enables optional run-metrics publishing for dashboards.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// SchedulerConfig governs dispatch cadence for the long-running service.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// DispatchConfig tunes the delivery dispatch pass.
type DispatchConfig struct {
	Channel string `mapstructure:"channel"`
	Limit   int    `mapstructure:"limit"`
	// Overfetch widens the candidate query to Limit*Overfetch so that rows
	// filtered after the fetch still leave a full batch to process.
	Overfetch int `mapstructure:"overfetch"`
}

// EscalationConfig 定义升级告警与冷却参数。
type EscalationConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	WebhookURL      string        `mapstructure:"webhook_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CooldownMinutes int           `mapstructure:"cooldown_minutes"`
	LedgerPath      string        `mapstructure:"ledger_path"`
}

// FeedbackConfig tunes feedback aggregation.
type FeedbackConfig struct {
	WindowDays int `mapstructure:"window_days"`
	MinSample  int `mapstructure:"min_sample"`
	TopNoisy   int `mapstructure:"top_noisy"`
}

// KPIConfig carries the service-level gate thresholds.
type KPIConfig struct {
	WindowDays    int     `mapstructure:"window_days"`
	LatencyP95Sec float64 `mapstructure:"latency_p95_sec"`
	AlertCTR      float64 `mapstructure:"alert_ctr"`
	NoiseRatio    float64 `mapstructure:"noise_ratio"`
	Retention7d   float64 `mapstructure:"retention_7d"`
}

// ReportConfig sets report output behaviour.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	MaxRows   int    `mapstructure:"max_rows"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNALWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "signalwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x5157414C))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("dispatch.channel", "inbox")
	v.SetDefault("dispatch.limit", 50)
	v.SetDefault("dispatch.overfetch", 3)

	v.SetDefault("escalation.enabled", false)
	v.SetDefault("escalation.request_timeout", "10s")
	v.SetDefault("escalation.cooldown_minutes", 30)
	v.SetDefault("escalation.ledger_path", "notifier_state.json")

	v.SetDefault("feedback.window_days", 14)
	v.SetDefault("feedback.min_sample", 5)
	v.SetDefault("feedback.top_noisy", 20)

	v.SetDefault("kpi.window_days", 7)
	v.SetDefault("kpi.latency_p95_sec", 60.0)
	v.SetDefault("kpi.alert_ctr", 0.18)
	v.SetDefault("kpi.noise_ratio", 0.30)
	v.SetDefault("kpi.retention_7d", 0.25)

	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.max_rows", 1000)

	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Dispatch.Limit <= 0 {
		return fmt.Errorf("dispatch.limit must be greater than zero")
	}
	if c.Dispatch.Overfetch <= 0 {
		return fmt.Errorf("dispatch.overfetch must be greater than zero")
	}
	if c.Dispatch.Channel == "" {
		return fmt.Errorf("dispatch.channel must be set")
	}
	if c.Escalation.CooldownMinutes < 0 {
		return fmt.Errorf("escalation.cooldown_minutes cannot be negative")
	}
	if c.Escalation.Enabled {
		if c.Escalation.WebhookURL == "" {
			return fmt.Errorf("escalation.webhook_url 必须配置")
		}
		if c.Escalation.LedgerPath == "" {
			return fmt.Errorf("escalation.ledger_path 必须配置")
		}
	}
	if c.Feedback.WindowDays <= 0 {
		return fmt.Errorf("feedback.window_days must be greater than zero")
	}
	if c.KPI.WindowDays <= 0 {
		return fmt.Errorf("kpi.window_days must be greater than zero")
	}
	if c.Report.MaxRows <= 0 {
		return fmt.Errorf("report.max_rows must be greater than zero")
	}
	return nil
}

// ResolveLimit returns either the CLI override or config default.
func (c *Config) ResolveLimit(override int) int {
	if override > 0 {
		return override
	}
	return c.Dispatch.Limit
}
