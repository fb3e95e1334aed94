package kpi

import (
	"math"
	"testing"
	"time"

	"signal-alerts/internal/storage"
)

func day(sent, opened, fbTotal, fbNoise int64, p95 float64) storage.DailyKPIRow {
	return storage.DailyKPIRow{
		AlertSent:     sent,
		AlertOpened:   opened,
		FeedbackTotal: fbTotal,
		FeedbackNoise: fbNoise,
		LatencyP95Sec: p95,
	}
}

func TestSummarizeRollsUpWindow(t *testing.T) {
	rows := []storage.DailyKPIRow{
		day(100, 20, 10, 3, 12),
		day(50, 10, 5, 2, 45),
		day(0, 0, 0, 0, 0),
	}

	summary := Summarize(rows)
	if summary.AlertSent != 150 || summary.AlertOpened != 30 {
		t.Fatalf("summary = %+v", summary)
	}
	if math.Abs(summary.AlertCTR-0.2) > 1e-9 {
		t.Fatalf("ctr = %f", summary.AlertCTR)
	}
	if math.Abs(summary.NoiseRatio-float64(5)/15) > 1e-9 {
		t.Fatalf("noise ratio = %f", summary.NoiseRatio)
	}
	// Worst-case rollup: max of the positive samples, zeros ignored.
	if summary.LatencyP95Sec != 45 {
		t.Fatalf("latency p95 = %f", summary.LatencyP95Sec)
	}
}

func TestSummarizeZeroSentYieldsZeroCTR(t *testing.T) {
	summary := Summarize([]storage.DailyKPIRow{day(0, 0, 0, 0, 0)})
	if summary.AlertCTR != 0 {
		t.Fatalf("ctr = %f", summary.AlertCTR)
	}
}

func TestEvaluateGatesNoDataFails(t *testing.T) {
	summary := Summarize([]storage.DailyKPIRow{day(100, 30, 0, 0, 0)})

	gates := EvaluateGates(summary, 0.5, DefaultThresholds)
	if gates.NoiseRatioOK {
		t.Fatal("no feedback must fail the noise gate")
	}
	if gates.LatencyP95OK {
		t.Fatal("all-zero latency samples must fail the latency gate")
	}
	if !gates.AlertCTROK {
		t.Fatalf("ctr 0.30 should pass threshold %f", DefaultThresholds.AlertCTR)
	}
	if !gates.Retention7dOK {
		t.Fatal("retention 0.5 should pass")
	}
}

func TestEvaluateGatesAllPass(t *testing.T) {
	summary := Summarize([]storage.DailyKPIRow{day(100, 20, 20, 4, 30)})

	gates := EvaluateGates(summary, 0.3, DefaultThresholds)
	if !gates.LatencyP95OK || !gates.AlertCTROK || !gates.NoiseRatioOK || !gates.Retention7dOK {
		t.Fatalf("gates = %+v", gates)
	}
}

func TestEvaluateGatesLatencyOverThresholdFails(t *testing.T) {
	summary := Summarize([]storage.DailyKPIRow{day(100, 20, 20, 4, 61)})
	gates := EvaluateGates(summary, 0.3, DefaultThresholds)
	if gates.LatencyP95OK {
		t.Fatal("p95 above threshold must fail")
	}
}

func TestRetentionRequiresTwoDistinctDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	openAt := func(user string, day, hour int) storage.OpenEvent {
		return storage.OpenEvent{UserID: user, OpenedAt: time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)}
	}

	events := []storage.OpenEvent{
		// u1: two distinct days -> retained.
		openAt("u1", 8, 9),
		openAt("u1", 9, 18),
		// u2: two opens on the same day -> not retained.
		openAt("u2", 8, 9),
		openAt("u2", 8, 22),
		// u3: only an open outside the window.
		openAt("u3", 1, 9),
	}

	retention := Retention(events, now)
	if math.Abs(retention-0.5) > 1e-9 {
		t.Fatalf("retention = %f, want 0.5", retention)
	}
}

func TestRetentionNoUsersIsZero(t *testing.T) {
	if r := Retention(nil, time.Now().UTC()); r != 0 {
		t.Fatalf("retention = %f", r)
	}
}
