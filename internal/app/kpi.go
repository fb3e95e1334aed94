package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"signal-alerts/internal/kpi"
	"signal-alerts/internal/report"
	"signal-alerts/internal/storage"
)

// KPI rolls the daily metrics window into a summary, checks the service
// gates, prints the result, and writes a Markdown report.
func (a *App) KPI(ctx context.Context, opts KPIOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot evaluate KPIs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.KPI.WindowDays
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = a.Config.Report.OutputDir
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	dailyRows, err := store.ListDailyKPISince(ctx, since)
	if err != nil {
		if storage.IsSchemaMissing(err) {
			a.Logger.Warn().Err(err).Msg("daily_kpi table missing; run migrations, nothing to evaluate")
			return nil
		}
		return fmt.Errorf("list daily kpi: %w", err)
	}

	openEvents, err := store.ListOpenEventsSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		// Retention degrades to zero, which fails its gate; visible, not fatal.
		a.Logger.Error().Err(err).Msg("list open events failed; retention treated as zero")
		openEvents = nil
	}

	thresholds := kpi.Thresholds{
		LatencyP95Sec: a.Config.KPI.LatencyP95Sec,
		AlertCTR:      a.Config.KPI.AlertCTR,
		NoiseRatio:    a.Config.KPI.NoiseRatio,
		Retention7d:   a.Config.KPI.Retention7d,
	}

	summary := kpi.Summarize(dailyRows)
	retention := kpi.Retention(openEvents, now)
	gates := kpi.EvaluateGates(summary, retention, thresholds)

	printGates(summary, retention, gates, thresholds)

	mdPath := filepath.Join(outDir, "kpi_gates.md")
	if err := report.WriteKPIMarkdown(mdPath, summary, retention, gates, thresholds); err != nil {
		a.Logger.Error().Err(err).Str("path", mdPath).Msg("write kpi markdown failed")
	}

	a.Logger.Info().
		Int("days", days).
		Int64("sent", summary.AlertSent).
		Int64("opened", summary.AlertOpened).
		Float64("alert_ctr", summary.AlertCTR).
		Float64("noise_ratio", summary.NoiseRatio).
		Float64("latency_p95_sec", summary.LatencyP95Sec).
		Float64("retention_7d", retention).
		Bool("latency_ok", gates.LatencyP95OK).
		Bool("ctr_ok", gates.AlertCTROK).
		Bool("noise_ok", gates.NoiseRatioOK).
		Bool("retention_ok", gates.Retention7dOK).
		Msg("kpi gate evaluation complete")

	return nil
}

func printGates(summary kpi.Summary, retention float64, gates kpi.GateResult, thresholds kpi.Thresholds) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Gate\tValue\tThreshold\tPass")
	fmt.Fprintf(writer, "latency_p95_sec\t%.1f\t<= %.1f\t%t\n", summary.LatencyP95Sec, thresholds.LatencyP95Sec, gates.LatencyP95OK)
	fmt.Fprintf(writer, "alert_ctr\t%.3f\t>= %.3f\t%t\n", summary.AlertCTR, thresholds.AlertCTR, gates.AlertCTROK)
	fmt.Fprintf(writer, "noise_ratio\t%.3f\t<= %.3f\t%t\n", summary.NoiseRatio, thresholds.NoiseRatio, gates.NoiseRatioOK)
	fmt.Fprintf(writer, "retention_7d\t%.3f\t>= %.3f\t%t\n", retention, thresholds.Retention7d, gates.Retention7dOK)
	writer.Flush()
}
