package kpi

import (
	"time"

	"signal-alerts/internal/storage"
)

// Thresholds define the pass/fail boundaries of the service-level gates.
// Immutable at run time.
type Thresholds struct {
	LatencyP95Sec float64
	AlertCTR      float64
	NoiseRatio    float64
	Retention7d   float64
}

// DefaultThresholds are the operative service-level boundaries.
var DefaultThresholds = Thresholds{
	LatencyP95Sec: 60,
	AlertCTR:      0.18,
	NoiseRatio:    0.30,
	Retention7d:   0.25,
}

// Summary rolls the daily KPI rows of a window into one view.
type Summary struct {
	AlertSent     int64
	AlertOpened   int64
	FeedbackTotal int64
	FeedbackNoise int64
	AlertCTR      float64
	NoiseRatio    float64
	// LatencyP95Sec is the maximum of all positive per-day p95 samples, a
	// conservative worst-case rollup rather than an average.
	LatencyP95Sec float64
}

// GateResult reports each service-level check independently. There is no
// aggregate pass/fail; consumers decide which gates block a release.
type GateResult struct {
	LatencyP95OK  bool
	AlertCTROK    bool
	NoiseRatioOK  bool
	Retention7dOK bool
}

// Summarize sums the window's daily rows and derives the rollup ratios.
func Summarize(rows []storage.DailyKPIRow) Summary {
	var summary Summary
	for _, row := range rows {
		summary.AlertSent += row.AlertSent
		summary.AlertOpened += row.AlertOpened
		summary.FeedbackTotal += row.FeedbackTotal
		summary.FeedbackNoise += row.FeedbackNoise
		if row.LatencyP95Sec > 0 && row.LatencyP95Sec > summary.LatencyP95Sec {
			summary.LatencyP95Sec = row.LatencyP95Sec
		}
	}
	if summary.AlertSent > 0 {
		summary.AlertCTR = float64(summary.AlertOpened) / float64(summary.AlertSent)
	}
	if summary.FeedbackTotal > 0 {
		summary.NoiseRatio = float64(summary.FeedbackNoise) / float64(summary.FeedbackTotal)
	}
	return summary
}

// EvaluateGates checks the summary against the thresholds. Missing data
// fails the latency and noise gates: absence of data is not evidence of
// health.
func EvaluateGates(summary Summary, retention float64, t Thresholds) GateResult {
	return GateResult{
		LatencyP95OK:  summary.LatencyP95Sec > 0 && summary.LatencyP95Sec <= t.LatencyP95Sec,
		AlertCTROK:    summary.AlertCTR >= t.AlertCTR,
		NoiseRatioOK:  summary.FeedbackTotal > 0 && summary.NoiseRatio <= t.NoiseRatio,
		Retention7dOK: retention >= t.Retention7d,
	}
}

// Retention computes the fraction of distinct users with open events on at
// least two distinct UTC days within the trailing 7 days.
func Retention(openEvents []storage.OpenEvent, now time.Time) float64 {
	cutoff := now.UTC().AddDate(0, 0, -7)

	daysByUser := make(map[string]map[string]struct{})
	for _, ev := range openEvents {
		opened := ev.OpenedAt.UTC()
		if opened.Before(cutoff) || opened.After(now) {
			continue
		}
		days, ok := daysByUser[ev.UserID]
		if !ok {
			days = make(map[string]struct{})
			daysByUser[ev.UserID] = days
		}
		days[opened.Format("2006-01-02")] = struct{}{}
	}

	if len(daysByUser) == 0 {
		return 0
	}

	retained := 0
	for _, days := range daysByUser {
		if len(days) >= 2 {
			retained++
		}
	}
	return float64(retained) / float64(len(daysByUser))
}
