package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Alert event status values managed by the dispatch pass.
const (
	EventStatusPending = "pending"
	EventStatusSent    = "sent"
	EventStatusDeduped = "deduped"
	EventStatusFailed  = "failed"
)

// Feedback labels applied by end users.
const (
	FeedbackUseful = "useful"
	FeedbackNoise  = "noise"
)

// AlertEvent is a computed signal row produced by the analysis pipeline.
// This engine only advances its status; events are never deleted here.
type AlertEvent struct {
	ID           int64
	UserID       string
	Ticker       string
	SignalType   string
	DedupeWindow string
	Title        string
	WhyNow       string
	Score        decimal.Decimal
	Payload      json.RawMessage
	Status       string
	IsActive     bool
	CreatedAt    time.Time
}

// DeliveryRecord captures one handed-off notification. At most one record
// may ever exist per dedupe key; the table carries a unique constraint.
type DeliveryRecord struct {
	ID              int64
	AlertID         int64
	UserID          string
	Channel         string
	DedupeKey       string
	Status          string
	ProviderMessage string
	Payload         json.RawMessage
	SentAt          time.Time
	RunID           string
}

// FeedbackRecord is an append-only useful/noise label from an end user.
type FeedbackRecord struct {
	ID        int64
	AlertID   int64
	Label     string
	Reason    string
	UserID    string
	CreatedAt time.Time
}

// DailyKPIRow is one day of rolled-up delivery/feedback/latency metrics,
// produced upstream and read-only here.
type DailyKPIRow struct {
	MetricDate     time.Time
	AlertSent      int64
	AlertOpened    int64
	FeedbackTotal  int64
	FeedbackNoise  int64
	FeedbackUseful int64
	LatencyP95Sec  float64
	AlertCTR       float64
	NoiseRatio     float64
}

// OpenEvent records a user opening an alert, used for retention.
type OpenEvent struct {
	UserID   string
	OpenedAt time.Time
}

// RunMetrics summarises one engine pass for operator history.
type RunMetrics struct {
	RunID      string
	Component  string
	Pending    int
	Sent       int
	Deduped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}
