package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signal-alerts/internal/storage"
)

// Payload field caps for the delivery record.
const (
	maxProviderMessageLen = 256
	maxTitleLen           = 200
	maxWhyNowLen          = 500
	maxRawPayloadLen      = 2000
)

// DefaultOverfetch widens the candidate fetch beyond the processing limit
// so rows dropped after the query still leave a full batch.
const DefaultOverfetch = 3

// Options configure a single dispatch pass.
type Options struct {
	RunID     string
	Limit     int
	Channel   string
	DryRun    bool
	Overfetch int
}

// Result counts the outcome of one dispatch pass.
type Result struct {
	Pending int
	Sent    int
	Deduped int
	Failed  int
}

// Engine turns pending alert events into idempotently delivered records.
type Engine struct {
	events     storage.AlertEventStore
	deliveries storage.DeliveryStore
	logger     zerolog.Logger
}

// NewEngine constructs a dispatch engine over the given stores.
func NewEngine(events storage.AlertEventStore, deliveries storage.DeliveryStore, logger zerolog.Logger) *Engine {
	return &Engine{
		events:     events,
		deliveries: deliveries,
		logger:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// Run processes up to opts.Limit pending events oldest-first. Re-running the
// pass at any point is safe: the store's unique dedupe-key constraint means
// each distinct key yields at most one delivery regardless of retries.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Limit <= 0 {
		return Result{}, fmt.Errorf("dispatch limit must be positive")
	}
	if opts.Channel == "" {
		return Result{}, fmt.Errorf("dispatch channel must be set")
	}
	overfetch := opts.Overfetch
	if overfetch <= 0 {
		overfetch = DefaultOverfetch
	}

	var result Result

	candidates, err := e.events.ListPendingAlertEvents(ctx, opts.Limit*overfetch)
	if err != nil {
		if storage.IsSchemaMissing(err) {
			e.logger.Warn().Err(err).Msg("alert_events table missing; run migrations, treating pass as no-op")
			e.logMetrics(opts, result)
			return result, nil
		}
		return result, fmt.Errorf("list pending events: %w", err)
	}

	for _, event := range candidates {
		if result.Sent+result.Deduped+result.Failed >= opts.Limit {
			break
		}
		result.Pending++
		e.processEvent(ctx, opts, event, &result)
	}

	e.logMetrics(opts, result)
	return result, nil
}

func (e *Engine) processEvent(ctx context.Context, opts Options, event storage.AlertEvent, result *Result) {
	key := BuildDedupeKey(opts.Channel, event.UserID, event.Ticker, event.SignalType, event.DedupeWindow)

	if opts.DryRun {
		existing, err := e.deliveries.FindDelivery(ctx, key)
		if err != nil {
			result.Failed++
			e.logger.Error().Err(err).Int64("alert_id", event.ID).Msg("dry-run delivery lookup failed")
			return
		}
		if existing != nil {
			result.Deduped++
		} else {
			result.Sent++
		}
		return
	}

	rec := storage.DeliveryRecord{
		AlertID:         event.ID,
		UserID:          truncate(event.UserID, maxUserIDLen),
		Channel:         opts.Channel,
		DedupeKey:       key,
		Status:          storage.EventStatusSent,
		ProviderMessage: providerMessage(event),
		Payload:         deliveryPayload(event),
		SentAt:          time.Now().UTC(),
		RunID:           opts.RunID,
	}

	inserted, err := e.deliveries.InsertDelivery(ctx, rec)
	if err != nil {
		// Event stays pending so the next pass retries it.
		result.Failed++
		e.logger.Error().Err(err).Int64("alert_id", event.ID).Str("dedupe_key", key).Msg("insert delivery failed")
		return
	}

	if !inserted {
		result.Deduped++
		if err := e.events.UpdateAlertEventStatus(ctx, event.ID, storage.EventStatusDeduped); err != nil {
			e.logger.Error().Err(err).Int64("alert_id", event.ID).Msg("mark event deduped failed")
		}
		return
	}

	result.Sent++
	if err := e.events.UpdateAlertEventStatus(ctx, event.ID, storage.EventStatusSent); err != nil {
		e.logger.Error().Err(err).Int64("alert_id", event.ID).Msg("mark event sent failed")
	}
}

func (e *Engine) logMetrics(opts Options, result Result) {
	e.logger.Info().
		Str("run_id", opts.RunID).
		Str("channel", opts.Channel).
		Bool("dry_run", opts.DryRun).
		Int("pending", result.Pending).
		Int("sent", result.Sent).
		Int("deduped", result.Deduped).
		Int("failed", result.Failed).
		Msg("dispatch pass complete")
}

func providerMessage(event storage.AlertEvent) string {
	msg := fmt.Sprintf("[%s] %s", strings.ToUpper(truncate(event.Ticker, maxTickerLen)), event.Title)
	return truncate(msg, maxProviderMessageLen)
}

func deliveryPayload(event storage.AlertEvent) json.RawMessage {
	body := map[string]string{
		"title":   truncate(event.Title, maxTitleLen),
		"why_now": truncate(event.WhyNow, maxWhyNowLen),
		"raw":     truncate(string(event.Payload), maxRawPayloadLen),
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return encoded
}
