package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"signal-alerts/internal/escalation"
)

// SimulateOptions feed a synthetic candidate through the escalation gate.
type SimulateOptions struct {
	EventKey        string
	Level           string
	PriorLevel      string
	PriorMinutesAgo int
	CooldownMinutes int
}

// SimulateEscalation 通过给定的级别组合模拟一次升级判定，不访问存储。
func (a *App) SimulateEscalation(ctx context.Context, opts SimulateOptions) error {
	if opts.EventKey == "" {
		return errors.New("--key 必须提供")
	}
	if escalation.LevelRank(opts.Level) == 0 && opts.Level != "L0" {
		a.Logger.Warn().Str("level", opts.Level).Msg("unknown level, treated as L0")
	}

	cooldownMinutes := opts.CooldownMinutes
	if cooldownMinutes <= 0 {
		cooldownMinutes = a.Config.Escalation.CooldownMinutes
	}

	now := time.Now().UTC()
	candidate := escalation.Candidate{
		EventKey:  opts.EventKey,
		Level:     opts.Level,
		CreatedAt: now,
	}

	var prior *escalation.LedgerEntry
	if opts.PriorLevel != "" {
		prior = &escalation.LedgerEntry{
			Level:  opts.PriorLevel,
			SentAt: now.Add(-time.Duration(opts.PriorMinutesAgo) * time.Minute),
		}
	}

	send, reason := escalation.ShouldSend(candidate, prior, time.Duration(cooldownMinutes)*time.Minute)
	fmt.Fprintf(os.Stdout, "send: %t\nreason: %s\n", send, reason)
	return nil
}
