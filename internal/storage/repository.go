package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	listPendingEventsSQL = `SELECT
        id,
        user_id,
        ticker,
        signal_type,
        dedupe_window,
        title,
        why_now,
        score,
        payload,
        status,
        is_active,
        created_at
    FROM alert_events
    WHERE is_active = TRUE
      AND status = 'pending'
    ORDER BY created_at
    LIMIT $1;`

	listEventsByIDsSQL = `SELECT
        id,
        user_id,
        ticker,
        signal_type,
        dedupe_window,
        title,
        why_now,
        score,
        payload,
        status,
        is_active,
        created_at
    FROM alert_events
    WHERE id = ANY($1);`

	updateEventStatusSQL = `UPDATE alert_events
    SET status = $2
    WHERE id = $1;`

	insertDeliverySQL = `INSERT INTO alert_deliveries (
        alert_id,
        user_id,
        channel,
        dedupe_key,
        status,
        provider_message,
        payload,
        sent_at,
        run_id
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (dedupe_key) DO NOTHING;`

	findDeliverySQL = `SELECT
        id,
        alert_id,
        user_id,
        channel,
        dedupe_key,
        status,
        provider_message,
        payload,
        sent_at,
        run_id
    FROM alert_deliveries
    WHERE dedupe_key = $1;`

	listRecentDeliveriesSQL = `SELECT
        id,
        alert_id,
        user_id,
        channel,
        dedupe_key,
        status,
        provider_message,
        payload,
        sent_at,
        run_id
    FROM alert_deliveries
    ORDER BY sent_at DESC
    LIMIT $1;`

	listFeedbackSinceSQL = `SELECT
        id,
        alert_id,
        label,
        reason,
        user_id,
        created_at
    FROM alert_feedback
    WHERE created_at >= $1
    ORDER BY created_at;`

	listDailyKPISinceSQL = `SELECT
        metric_date,
        alert_sent,
        alert_opened,
        feedback_total,
        feedback_noise,
        feedback_useful,
        latency_p95_sec,
        alert_ctr,
        noise_ratio
    FROM daily_kpi
    WHERE metric_date >= $1
    ORDER BY metric_date;`

	listOpenEventsSinceSQL = `SELECT
        user_id,
        opened_at
    FROM alert_open_events
    WHERE opened_at >= $1;`

	insertRunMetricsSQL = `INSERT INTO run_metrics (
        run_id,
        component,
        pending,
        sent,
        deduped,
        failed,
        started_at,
        finished_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertEventStore defines read/update operations on alert events.
type AlertEventStore interface {
	ListPendingAlertEvents(ctx context.Context, limit int) ([]AlertEvent, error)
	ListAlertEventsByIDs(ctx context.Context, ids []int64) ([]AlertEvent, error)
	UpdateAlertEventStatus(ctx context.Context, id int64, status string) error
}

// DeliveryStore defines operations on delivery records.
type DeliveryStore interface {
	// InsertDelivery inserts the record unless a row with the same dedupe
	// key already exists. It reports whether a row was actually written, so
	// the caller can distinguish sent from deduped without a prior read.
	InsertDelivery(ctx context.Context, rec DeliveryRecord) (bool, error)
	FindDelivery(ctx context.Context, dedupeKey string) (*DeliveryRecord, error)
	ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

// FeedbackStore reads append-only user feedback.
type FeedbackStore interface {
	ListFeedbackSince(ctx context.Context, since time.Time) ([]FeedbackRecord, error)
}

// KPIStore reads daily KPI rollups and open events.
type KPIStore interface {
	ListDailyKPISince(ctx context.Context, since time.Time) ([]DailyKPIRow, error)
	ListOpenEventsSince(ctx context.Context, since time.Time) ([]OpenEvent, error)
}

// RunMetricsStore persists per-run counters.
type RunMetricsStore interface {
	InsertRunMetrics(ctx context.Context, m RunMetrics) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the alert lifecycle tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListPendingAlertEvents lists active pending events oldest-first.
func (s *Store) ListPendingAlertEvents(ctx context.Context, limit int) ([]AlertEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPendingEventsSQL, limit)
	if queryErr != nil {
		return nil, classifyError("list pending alert events", queryErr)
	}
	defer rows.Close()

	events := make([]AlertEvent, 0, limit)
	for rows.Next() {
		event, scanErr := scanAlertEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// ListAlertEventsByIDs resolves events referenced by feedback rows.
func (s *Store) ListAlertEventsByIDs(ctx context.Context, ids []int64) ([]AlertEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, queryErr := pool.Query(ctx, listEventsByIDsSQL, ids)
	if queryErr != nil {
		return nil, classifyError("list alert events by ids", queryErr)
	}
	defer rows.Close()

	events := make([]AlertEvent, 0, len(ids))
	for rows.Next() {
		event, scanErr := scanAlertEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// UpdateAlertEventStatus advances an event's lifecycle status.
func (s *Store) UpdateAlertEventStatus(ctx context.Context, id int64, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateEventStatusSQL, id, status)
	if execErr != nil {
		return classifyError("update alert event status", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertDelivery writes a delivery record unless its dedupe key is taken.
func (s *Store) InsertDelivery(ctx context.Context, rec DeliveryRecord) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, insertDeliverySQL,
		rec.AlertID,
		rec.UserID,
		rec.Channel,
		rec.DedupeKey,
		rec.Status,
		rec.ProviderMessage,
		[]byte(rec.Payload),
		rec.SentAt,
		rec.RunID,
	)
	if execErr != nil {
		return false, classifyError("insert delivery", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// FindDelivery returns the delivery for a dedupe key, or nil.
func (s *Store) FindDelivery(ctx context.Context, dedupeKey string) (*DeliveryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, findDeliverySQL, dedupeKey)
	if queryErr != nil {
		return nil, classifyError("find delivery", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, scanErr := scanDelivery(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	return &rec, nil
}

// ListRecentDeliveries lists the most recent deliveries.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, classifyError("list recent deliveries", queryErr)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ListFeedbackSince lists feedback created at or after the given time.
func (s *Store) ListFeedbackSince(ctx context.Context, since time.Time) ([]FeedbackRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFeedbackSinceSQL, since)
	if queryErr != nil {
		return nil, classifyError("list feedback since", queryErr)
	}
	defer rows.Close()

	records := make([]FeedbackRecord, 0)
	for rows.Next() {
		var rec FeedbackRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertID,
			&rec.Label,
			&rec.Reason,
			&rec.UserID,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ListDailyKPISince lists daily KPI rollup rows from the given date.
func (s *Store) ListDailyKPISince(ctx context.Context, since time.Time) ([]DailyKPIRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDailyKPISinceSQL, since)
	if queryErr != nil {
		return nil, classifyError("list daily kpi since", queryErr)
	}
	defer rows.Close()

	kpis := make([]DailyKPIRow, 0)
	for rows.Next() {
		var row DailyKPIRow
		if err := rows.Scan(
			&row.MetricDate,
			&row.AlertSent,
			&row.AlertOpened,
			&row.FeedbackTotal,
			&row.FeedbackNoise,
			&row.FeedbackUseful,
			&row.LatencyP95Sec,
			&row.AlertCTR,
			&row.NoiseRatio,
		); err != nil {
			return nil, err
		}
		kpis = append(kpis, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return kpis, nil
}

// ListOpenEventsSince lists alert open events from the given time.
func (s *Store) ListOpenEventsSince(ctx context.Context, since time.Time) ([]OpenEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOpenEventsSinceSQL, since)
	if queryErr != nil {
		return nil, classifyError("list open events since", queryErr)
	}
	defer rows.Close()

	events := make([]OpenEvent, 0)
	for rows.Next() {
		var ev OpenEvent
		if err := rows.Scan(&ev.UserID, &ev.OpenedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// InsertRunMetrics records counters for one engine pass.
func (s *Store) InsertRunMetrics(ctx context.Context, m RunMetrics) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertRunMetricsSQL,
		m.RunID,
		m.Component,
		m.Pending,
		m.Sent,
		m.Deduped,
		m.Failed,
		m.StartedAt,
		m.FinishedAt,
	); execErr != nil {
		return classifyError("insert run metrics", execErr)
	}
	return nil
}

func scanAlertEvent(rows pgx.Rows) (AlertEvent, error) {
	var (
		event    AlertEvent
		scoreStr string
		payload  []byte
	)

	if err := rows.Scan(
		&event.ID,
		&event.UserID,
		&event.Ticker,
		&event.SignalType,
		&event.DedupeWindow,
		&event.Title,
		&event.WhyNow,
		&scoreStr,
		&payload,
		&event.Status,
		&event.IsActive,
		&event.CreatedAt,
	); err != nil {
		return AlertEvent{}, err
	}

	score, err := decimal.NewFromString(scoreStr)
	if err != nil {
		return AlertEvent{}, fmt.Errorf("parse event score: %w", err)
	}
	event.Score = score
	event.Payload = payload

	return event, nil
}

func scanDelivery(rows pgx.Rows) (DeliveryRecord, error) {
	var (
		rec     DeliveryRecord
		payload []byte
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.AlertID,
		&rec.UserID,
		&rec.Channel,
		&rec.DedupeKey,
		&rec.Status,
		&rec.ProviderMessage,
		&payload,
		&rec.SentAt,
		&rec.RunID,
	); err != nil {
		return DeliveryRecord{}, err
	}
	rec.Payload = payload

	return rec, nil
}
