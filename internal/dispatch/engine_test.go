package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"signal-alerts/internal/storage"
)

type fakeStore struct {
	events     map[int64]*storage.AlertEvent
	order      []int64
	deliveries map[string]storage.DeliveryRecord
	insertErr  error
	inserts    int
}

func newFakeStore(events ...storage.AlertEvent) *fakeStore {
	s := &fakeStore{
		events:     make(map[int64]*storage.AlertEvent),
		deliveries: make(map[string]storage.DeliveryRecord),
	}
	for i := range events {
		event := events[i]
		s.events[event.ID] = &event
		s.order = append(s.order, event.ID)
	}
	return s
}

func (s *fakeStore) ListPendingAlertEvents(_ context.Context, limit int) ([]storage.AlertEvent, error) {
	out := make([]storage.AlertEvent, 0, limit)
	for _, id := range s.order {
		event := s.events[id]
		if !event.IsActive || event.Status != storage.EventStatusPending {
			continue
		}
		out = append(out, *event)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListAlertEventsByIDs(_ context.Context, ids []int64) ([]storage.AlertEvent, error) {
	out := make([]storage.AlertEvent, 0, len(ids))
	for _, id := range ids {
		if event, ok := s.events[id]; ok {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateAlertEventStatus(_ context.Context, id int64, status string) error {
	event, ok := s.events[id]
	if !ok {
		return errors.New("event not found")
	}
	event.Status = status
	return nil
}

func (s *fakeStore) InsertDelivery(_ context.Context, rec storage.DeliveryRecord) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	s.inserts++
	if _, exists := s.deliveries[rec.DedupeKey]; exists {
		return false, nil
	}
	s.deliveries[rec.DedupeKey] = rec
	return true, nil
}

func (s *fakeStore) FindDelivery(_ context.Context, dedupeKey string) (*storage.DeliveryRecord, error) {
	if rec, ok := s.deliveries[dedupeKey]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *fakeStore) ListRecentDeliveries(_ context.Context, limit int) ([]storage.DeliveryRecord, error) {
	out := make([]storage.DeliveryRecord, 0, len(s.deliveries))
	for _, rec := range s.deliveries {
		out = append(out, rec)
	}
	return out, nil
}

func pendingEvent(id int64, user, ticker, window string) storage.AlertEvent {
	return storage.AlertEvent{
		ID:           id,
		UserID:       user,
		Ticker:       ticker,
		SignalType:   "opportunity",
		DedupeWindow: window,
		Title:        "momentum breakout",
		WhyNow:       "volume spike",
		Score:        decimal.NewFromFloat(0.8),
		Status:       storage.EventStatusPending,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Add(-time.Duration(id) * time.Minute),
	}
}

func testEngine(s *fakeStore) *Engine {
	return NewEngine(s, s, zerolog.Nop())
}

func TestRunIdempotentAcrossPasses(t *testing.T) {
	store := newFakeStore(
		pendingEvent(1, "u1", "AAPL", "2024-01-01T10"),
		pendingEvent(2, "u2", "MSFT", "2024-01-01T10"),
	)
	engine := testEngine(store)
	opts := Options{RunID: "r1", Limit: 10, Channel: "inbox"}

	first, err := engine.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Sent != 2 || first.Deduped != 0 {
		t.Fatalf("first run expected 2 sent, got %+v", first)
	}

	// Re-pend the events and run again: the store keeps one delivery per key.
	for _, event := range store.events {
		event.Status = storage.EventStatusPending
	}
	second, err := engine.Run(context.Background(), Options{RunID: "r2", Limit: 10, Channel: "inbox"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Sent != 0 || second.Deduped != 2 {
		t.Fatalf("second run expected 2 deduped, got %+v", second)
	}
	if len(store.deliveries) != 2 {
		t.Fatalf("expected exactly 2 deliveries, got %d", len(store.deliveries))
	}
}

func TestRunSameKeyEvents(t *testing.T) {
	// 3 pending events sharing one dedupe key.
	store := newFakeStore(
		pendingEvent(1, "u1", "AAPL", "2024-01-01T10"),
		pendingEvent(2, "u1", "AAPL", "2024-01-01T10"),
		pendingEvent(3, "u1", "AAPL", "2024-01-01T10"),
	)
	engine := testEngine(store)

	first, err := engine.Run(context.Background(), Options{RunID: "r1", Limit: 1, Channel: "inbox"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Sent != 1 || first.Deduped != 0 {
		t.Fatalf("first run expected 1 sent, got %+v", first)
	}

	second, err := engine.Run(context.Background(), Options{RunID: "r2", Limit: 10, Channel: "inbox"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Sent != 0 || second.Deduped != 2 {
		t.Fatalf("second run expected 2 deduped, got %+v", second)
	}
	if len(store.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(store.deliveries))
	}
	if store.events[2].Status != storage.EventStatusDeduped || store.events[3].Status != storage.EventStatusDeduped {
		t.Fatalf("remaining events should be deduped: %s / %s", store.events[2].Status, store.events[3].Status)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	store := newFakeStore(pendingEvent(1, "u1", "AAPL", "2024-01-01T10"))
	engine := testEngine(store)

	result, err := engine.Run(context.Background(), Options{RunID: "r1", Limit: 10, Channel: "inbox", DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("dry run should count 1 sent, got %+v", result)
	}
	if len(store.deliveries) != 0 {
		t.Fatal("dry run must not insert deliveries")
	}
	if store.events[1].Status != storage.EventStatusPending {
		t.Fatalf("dry run must not change event status, got %s", store.events[1].Status)
	}
}

func TestRunInsertFailureLeavesEventPending(t *testing.T) {
	store := newFakeStore(pendingEvent(1, "u1", "AAPL", "2024-01-01T10"))
	store.insertErr = errors.New("connection reset")
	engine := testEngine(store)

	result, err := engine.Run(context.Background(), Options{RunID: "r1", Limit: 10, Channel: "inbox"})
	if err != nil {
		t.Fatalf("run should not abort on item failure: %v", err)
	}
	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("expected 1 failed, got %+v", result)
	}
	if store.events[1].Status != storage.EventStatusPending {
		t.Fatalf("failed insert must leave event pending, got %s", store.events[1].Status)
	}
}

func TestBuildDedupeKey(t *testing.T) {
	key := BuildDedupeKey("inbox", "u1", "AAPL", "opportunity", "2024-01-01T10")
	want := "inbox:u1:AAPL:opportunity:2024-01-01T10"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestBuildDedupeKeyTruncatesParts(t *testing.T) {
	longUser := strings.Repeat("u", 100)
	key := BuildDedupeKey("inbox", longUser, "AAPL", "opportunity", "2024-01-01T10")
	if !strings.HasPrefix(key, "inbox:"+strings.Repeat("u", maxUserIDLen)+":") {
		t.Fatalf("user id should be capped at %d chars: %q", maxUserIDLen, key)
	}
	if len(key) > maxDedupeKeyLen {
		t.Fatalf("key length %d exceeds cap %d", len(key), maxDedupeKeyLen)
	}

	huge := BuildDedupeKey("inbox", longUser, strings.Repeat("T", 50), strings.Repeat("s", 80), strings.Repeat("w", 90))
	if len(huge) > maxDedupeKeyLen {
		t.Fatalf("key length %d exceeds cap %d", len(huge), maxDedupeKeyLen)
	}
}
