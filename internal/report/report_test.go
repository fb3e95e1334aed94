package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"signal-alerts/internal/feedback"
	"signal-alerts/internal/kpi"
)

func TestWriteFeedbackCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "feedback.csv")
	aggregates := []feedback.Aggregate{
		{
			Ticker:         "AAPL",
			SignalType:     "opportunity",
			Total:          10,
			Useful:         4,
			Noise:          6,
			UsefulRatio:    0.4,
			NoiseRatio:     0.6,
			AvgScore:       decimal.NewFromFloat(0.55),
			Recommendation: feedback.RecommendTighten,
		},
	}

	if err := WriteFeedbackCSV(path, aggregates); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	if records[1][0] != "AAPL" || records[1][9] != feedback.RecommendTighten {
		t.Fatalf("row = %v", records[1])
	}
}

func TestWriteKPIMarkdownMarksFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.md")
	summary := kpi.Summary{AlertSent: 100, AlertOpened: 10, AlertCTR: 0.1}
	gates := kpi.EvaluateGates(summary, 0.1, kpi.DefaultThresholds)

	if err := WriteKPIMarkdown(path, summary, 0.1, gates, kpi.DefaultThresholds); err != nil {
		t.Fatalf("write markdown: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "FAIL") {
		t.Fatal("failing gates should render as FAIL")
	}
	if !strings.Contains(body, "| alert_ctr |") {
		t.Fatal("gate table missing alert_ctr row")
	}
}
