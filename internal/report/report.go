package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"signal-alerts/internal/feedback"
	"signal-alerts/internal/kpi"
)

// WriteFeedbackCSV renders per-segment aggregates as CSV.
func WriteFeedbackCSV(path string, aggregates []feedback.Aggregate) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ticker", "signal_type", "total", "useful", "noise", "useful_ratio", "noise_ratio", "avg_score", "last_feedback_at", "recommendation"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, agg := range aggregates {
		lastAt := ""
		if !agg.LastFeedbackAt.IsZero() {
			lastAt = agg.LastFeedbackAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			agg.Ticker,
			agg.SignalType,
			strconv.Itoa(agg.Total),
			strconv.Itoa(agg.Useful),
			strconv.Itoa(agg.Noise),
			formatRatio(agg.UsefulRatio),
			formatRatio(agg.NoiseRatio),
			agg.AvgScore.StringFixed(3),
			lastAt,
			agg.Recommendation,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// WriteFeedbackMarkdown renders the per-segment aggregates and global
// summary as a Markdown report for operators.
func WriteFeedbackMarkdown(path string, aggregates []feedback.Aggregate, summary feedback.Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# Feedback tuning report\n\n")
	fmt.Fprintf(file, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(file, "Total feedback: %d (useful %d / noise %d, noise ratio %s) across %d segments\n\n",
		summary.Total, summary.Useful, summary.Noise, formatRatio(summary.NoiseRatio), summary.Segments)

	fmt.Fprintln(file, "| Ticker | Signal | Total | Useful | Noise | Noise ratio | Avg score | Recommendation |")
	fmt.Fprintln(file, "|--------|--------|-------|--------|-------|-------------|-----------|----------------|")
	for _, agg := range aggregates {
		fmt.Fprintf(file, "| %s | %s | %d | %d | %d | %s | %s | %s |\n",
			agg.Ticker, agg.SignalType, agg.Total, agg.Useful, agg.Noise,
			formatRatio(agg.NoiseRatio), agg.AvgScore.StringFixed(3), agg.Recommendation)
	}

	return nil
}

// WriteTrendCSV renders the daily feedback series as CSV.
func WriteTrendCSV(path string, series []feedback.DailyPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "total", "useful", "noise"}); err != nil {
		return err
	}
	for _, point := range series {
		record := []string{
			point.Date,
			strconv.Itoa(point.Total),
			strconv.Itoa(point.Useful),
			strconv.Itoa(point.Noise),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// WriteKPIMarkdown renders the KPI summary and gate results as Markdown.
func WriteKPIMarkdown(path string, summary kpi.Summary, retention float64, gates kpi.GateResult, thresholds kpi.Thresholds) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# KPI gate report\n\n")
	fmt.Fprintf(file, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(file, "Sent: %d, Opened: %d, Feedback: %d (noise %d)\n\n",
		summary.AlertSent, summary.AlertOpened, summary.FeedbackTotal, summary.FeedbackNoise)

	fmt.Fprintln(file, "| Gate | Value | Threshold | Pass |")
	fmt.Fprintln(file, "|------|-------|-----------|------|")
	fmt.Fprintf(file, "| latency_p95_sec | %.1f | <= %.1f | %s |\n", summary.LatencyP95Sec, thresholds.LatencyP95Sec, passMark(gates.LatencyP95OK))
	fmt.Fprintf(file, "| alert_ctr | %s | >= %s | %s |\n", formatRatio(summary.AlertCTR), formatRatio(thresholds.AlertCTR), passMark(gates.AlertCTROK))
	fmt.Fprintf(file, "| noise_ratio | %s | <= %s | %s |\n", formatRatio(summary.NoiseRatio), formatRatio(thresholds.NoiseRatio), passMark(gates.NoiseRatioOK))
	fmt.Fprintf(file, "| retention_7d | %s | >= %s | %s |\n", formatRatio(retention), formatRatio(thresholds.Retention7d), passMark(gates.Retention7dOK))

	return nil
}

func passMark(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
