package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Result counts the outcome of one escalation pass.
type Result struct {
	Considered int
	Sent       int
	Skipped    int
	Failed     int
}

// Runner applies the gate decision to a batch of candidates and drives the
// outbound webhook. The ledger must be loaded before and saved after a pass
// by the caller; Runner never touches the ledger file itself.
type Runner struct {
	notifier Notifier
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewRunner constructs an escalation runner.
func NewRunner(notifier Notifier, cooldown time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		notifier: notifier,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "escalation").Logger(),
	}
}

// Process walks candidates through the gate, updating the ledger on every
// send decision. Dry-run suppresses only the outbound webhook call, not the
// ledger bookkeeping, so the decision trail mirrors a real pass. A failed
// webhook send is logged and counted, never retried or escalated.
func (r *Runner) Process(ctx context.Context, ledger *Ledger, candidates []Candidate, dryRun bool) Result {
	var result Result

	for _, candidate := range candidates {
		result.Considered++

		prior := ledger.Get(candidate.EventKey)
		send, reason := ShouldSend(candidate, prior, r.cooldown)
		if !send {
			result.Skipped++
			r.logger.Debug().
				Str("event_key", candidate.EventKey).
				Str("reason", reason).
				Msg("notification suppressed")
			continue
		}

		ledger.Record(candidate.EventKey, candidate.Level, time.Now().UTC())

		if dryRun || r.notifier == nil {
			result.Sent++
			r.logger.Info().
				Str("event_key", candidate.EventKey).
				Str("reason", reason).
				Bool("dry_run", true).
				Msg("notification decision: send")
			continue
		}

		if err := r.notifier.Notify(ctx, renderText(candidate)); err != nil {
			result.Failed++
			r.logger.Error().Err(err).
				Str("event_key", candidate.EventKey).
				Msg("webhook send failed")
			continue
		}

		result.Sent++
		r.logger.Info().
			Str("event_key", candidate.EventKey).
			Str("level", candidate.Level).
			Str("reason", reason).
			Msg("notification sent")
	}

	r.logger.Info().
		Int("considered", result.Considered).
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Bool("dry_run", dryRun).
		Msg("escalation pass complete")

	return result
}

func renderText(candidate Candidate) string {
	header := fmt.Sprintf("[%s] %s", candidate.Level, candidate.EventKey)
	if candidate.Message == "" {
		return header
	}
	return header + "\n" + candidate.Message
}
