package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signal-alerts/internal/storage"
)

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

func TestProcessSendsAndRecordsLedger(t *testing.T) {
	notifier := &recordingNotifier{}
	runner := NewRunner(notifier, 30*time.Minute, zerolog.Nop())
	ledger := NewLedger()

	candidates := []Candidate{
		{EventKey: "AAPL:opportunity", Level: "L1", CreatedAt: time.Now().UTC(), Message: "breakout"},
	}

	result := runner.Process(context.Background(), ledger, candidates, false)
	if result.Sent != 1 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 webhook send, got %d", len(notifier.sent))
	}
	if ledger.Get("AAPL:opportunity") == nil {
		t.Fatal("send decision must be recorded in the ledger")
	}
}

func TestProcessDryRunUpdatesLedgerWithoutSending(t *testing.T) {
	notifier := &recordingNotifier{}
	runner := NewRunner(notifier, 30*time.Minute, zerolog.Nop())
	ledger := NewLedger()

	candidates := []Candidate{
		{EventKey: "AAPL:opportunity", Level: "L1", CreatedAt: time.Now().UTC()},
	}

	result := runner.Process(context.Background(), ledger, candidates, true)
	if result.Sent != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("dry-run must suppress webhook sends")
	}
	if ledger.Get("AAPL:opportunity") == nil {
		t.Fatal("dry-run still records the ledger decision")
	}
}

func TestProcessSuppressedCandidateLeavesLedgerAlone(t *testing.T) {
	runner := NewRunner(&recordingNotifier{}, 30*time.Minute, zerolog.Nop())
	ledger := NewLedger()
	sentAt := time.Now().UTC().Add(-5 * time.Minute)
	ledger.Record("AAPL:opportunity", "L2", sentAt)

	candidates := []Candidate{
		{EventKey: "AAPL:opportunity", Level: "L2", CreatedAt: time.Now().UTC()},
	}

	result := runner.Process(context.Background(), ledger, candidates, false)
	if result.Skipped != 1 || result.Sent != 0 {
		t.Fatalf("result = %+v", result)
	}
	if entry := ledger.Get("AAPL:opportunity"); !entry.SentAt.Equal(sentAt) {
		t.Fatal("suppressed candidate must not touch the ledger entry")
	}
}

func TestProcessWebhookFailureCountedNotFatal(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("connection refused")}
	runner := NewRunner(notifier, 30*time.Minute, zerolog.Nop())
	ledger := NewLedger()

	candidates := []Candidate{
		{EventKey: "AAPL:opportunity", Level: "L1", CreatedAt: time.Now().UTC()},
	}

	result := runner.Process(context.Background(), ledger, candidates, false)
	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestBuildCandidatesReadsPayloadLevel(t *testing.T) {
	events := []storage.AlertEvent{
		{Ticker: "AAPL", SignalType: "opportunity", Title: "breakout", Payload: json.RawMessage(`{"level":"L3"}`)},
		{Ticker: "MSFT", SignalType: "risk", Title: "drawdown", Payload: json.RawMessage(`{"level":"bogus"}`)},
		{Ticker: "NVDA", SignalType: "opportunity", Title: "surge"},
	}

	candidates := BuildCandidates(events)
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	if candidates[0].EventKey != "AAPL:opportunity" || candidates[0].Level != "L3" {
		t.Fatalf("candidate = %+v", candidates[0])
	}
	if candidates[1].Level != DefaultLevel {
		t.Fatalf("unknown payload level should fall back to %s, got %s", DefaultLevel, candidates[1].Level)
	}
	if candidates[2].Level != DefaultLevel {
		t.Fatalf("missing payload should fall back to %s, got %s", DefaultLevel, candidates[2].Level)
	}
}
