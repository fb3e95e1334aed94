package feedback

import (
	"testing"
	"time"

	"signal-alerts/internal/storage"
)

func TestBuildTrendPreseedsEmptyDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	rows := []storage.FeedbackRecord{
		feedbackRow(1, storage.FeedbackNoise, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)),
	}

	series, _ := buildTrendAt(rows, EventIndex{}, 7, DefaultTopSegments, now)
	if len(series) != 7 {
		t.Fatalf("expected 7 daily points, got %d", len(series))
	}
	if series[0].Date != "2024-03-04" || series[6].Date != "2024-03-10" {
		t.Fatalf("window boundaries wrong: %s .. %s", series[0].Date, series[6].Date)
	}
	for _, point := range series {
		switch point.Date {
		case "2024-03-09":
			if point.Total != 1 || point.Noise != 1 {
				t.Fatalf("point = %+v", point)
			}
		default:
			if point.Total != 0 {
				t.Fatalf("empty day %s should be zero, got %+v", point.Date, point)
			}
		}
	}
}

func TestBuildTrendDropsRowsOutsideWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	rows := []storage.FeedbackRecord{
		feedbackRow(1, storage.FeedbackNoise, time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)),
		feedbackRow(2, storage.FeedbackUseful, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)),
	}

	series, segments := buildTrendAt(rows, EventIndex{}, 3, DefaultTopSegments, now)
	total := 0
	for _, point := range series {
		total += point.Total
	}
	if total != 1 {
		t.Fatalf("only the in-window row should be bucketed, got %d", total)
	}
	// Segment ranking must also exclude out-of-window rows.
	if len(segments) != 1 || segments[0].Total != 1 {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestRankNoisySegmentsRatioDominatesVolume(t *testing.T) {
	index := BuildEventIndex([]storage.AlertEvent{
		eventFor(1, "AAPL", "opportunity", 0.5),
		eventFor(2, "MSFT", "opportunity", 0.5),
	})
	// AAPL: 20 rows, half noise. MSFT: 4 rows, all noise.
	rows := append(repeatRows(1, storage.FeedbackNoise, 10), repeatRows(1, storage.FeedbackUseful, 10)...)
	rows = append(rows, repeatRows(2, storage.FeedbackNoise, 4)...)

	segments := rankNoisySegments(rows, index, DefaultTopSegments)
	if segments[0].Ticker != "MSFT" {
		t.Fatalf("pure-noise segment should rank first despite lower volume, got %s", segments[0].Ticker)
	}
}

func TestRankNoisySegmentsKeepsTopN(t *testing.T) {
	events := make([]storage.AlertEvent, 0, 25)
	rows := make([]storage.FeedbackRecord, 0, 25)
	for i := int64(1); i <= 25; i++ {
		events = append(events, eventFor(i, string(rune('A'+i%26))+"X", "opportunity", 0.5))
		rows = append(rows, repeatRows(i, storage.FeedbackNoise, 1)...)
	}

	segments := rankNoisySegments(rows, BuildEventIndex(events), 20)
	if len(segments) > 20 {
		t.Fatalf("expected at most 20 segments, got %d", len(segments))
	}
}
