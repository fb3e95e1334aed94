package feedback

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"signal-alerts/internal/storage"
)

// Fallback segment for feedback whose originating event cannot be resolved.
const (
	unknownTicker     = "UNKNOWN"
	defaultSignalType = "opportunity"
)

// Recommendation texts emitted per segment.
const (
	RecommendObserve = "insufficient sample, keep observing"
	RecommendTighten = "noise high: raise min_score, extend cooldown"
	RecommendLoosen  = "quality good: consider loosening threshold"
	RecommendHold    = "hold current threshold"
)

// Policy sets the thresholds of the recommendation rules.
type Policy struct {
	MinSample  int
	NoiseHigh  float64
	UsefulGood float64
}

// DefaultPolicy matches the tuning cadence the operators run with.
var DefaultPolicy = Policy{
	MinSample:  5,
	NoiseHigh:  0.60,
	UsefulGood: 0.70,
}

// Aggregate is the derived per-segment feedback rollup. It is recomputed
// from scratch on every run and never persisted by this engine.
type Aggregate struct {
	Ticker         string
	SignalType     string
	Total          int
	Useful         int
	Noise          int
	UsefulRatio    float64
	NoiseRatio     float64
	AvgScore       decimal.Decimal
	LastFeedbackAt time.Time
	Recommendation string
}

// Summary reports the global feedback picture across all segments.
type Summary struct {
	Total      int
	Useful     int
	Noise      int
	NoiseRatio float64
	Segments   int
}

// EventIndex resolves feedback rows back to their originating alert events.
type EventIndex map[int64]storage.AlertEvent

// BuildEventIndex keys events by id.
func BuildEventIndex(events []storage.AlertEvent) EventIndex {
	index := make(EventIndex, len(events))
	for _, event := range events {
		index[event.ID] = event
	}
	return index
}

// Aggregator groups feedback into per-segment tuning recommendations.
type Aggregator struct {
	policy Policy
}

// NewAggregator constructs an aggregator with the given policy; zero-value
// policy fields fall back to the defaults.
func NewAggregator(policy Policy) *Aggregator {
	if policy.MinSample <= 0 {
		policy.MinSample = DefaultPolicy.MinSample
	}
	if policy.NoiseHigh <= 0 {
		policy.NoiseHigh = DefaultPolicy.NoiseHigh
	}
	if policy.UsefulGood <= 0 {
		policy.UsefulGood = DefaultPolicy.UsefulGood
	}
	return &Aggregator{policy: policy}
}

// Aggregate groups rows by (ticker, signal_type) and derives ratios and a
// recommendation per group, plus a global summary. Groups sort descending by
// (total, noise_ratio, useful_ratio) so the busiest, noisiest segments
// surface first.
func (a *Aggregator) Aggregate(rows []storage.FeedbackRecord, index EventIndex) ([]Aggregate, Summary) {
	groups := groupFeedback(rows, index)

	aggregates := make([]Aggregate, 0, len(groups))
	var summary Summary
	for _, acc := range groups {
		agg := acc.finalize()
		agg.Recommendation = a.recommend(agg)
		aggregates = append(aggregates, agg)

		summary.Total += agg.Total
		summary.Useful += agg.Useful
		summary.Noise += agg.Noise
	}
	summary.Segments = len(aggregates)
	if summary.Total > 0 {
		summary.NoiseRatio = float64(summary.Noise) / float64(summary.Total)
	}

	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].Total != aggregates[j].Total {
			return aggregates[i].Total > aggregates[j].Total
		}
		if aggregates[i].NoiseRatio != aggregates[j].NoiseRatio {
			return aggregates[i].NoiseRatio > aggregates[j].NoiseRatio
		}
		return aggregates[i].UsefulRatio > aggregates[j].UsefulRatio
	})

	return aggregates, summary
}

// recommend applies the tuning rules in order; the volume gate dominates.
func (a *Aggregator) recommend(agg Aggregate) string {
	switch {
	case agg.Total < a.policy.MinSample:
		return RecommendObserve
	case agg.NoiseRatio >= a.policy.NoiseHigh:
		return RecommendTighten
	case agg.UsefulRatio >= a.policy.UsefulGood:
		return RecommendLoosen
	default:
		return RecommendHold
	}
}

type segmentKey struct {
	ticker     string
	signalType string
}

type accumulator struct {
	key      segmentKey
	total    int
	useful   int
	noise    int
	scoreSum decimal.Decimal
	lastAt   time.Time
}

func groupFeedback(rows []storage.FeedbackRecord, index EventIndex) map[segmentKey]*accumulator {
	groups := make(map[segmentKey]*accumulator)

	for _, row := range rows {
		ticker := unknownTicker
		signalType := defaultSignalType
		score := decimal.Zero
		if event, ok := index[row.AlertID]; ok {
			ticker = event.Ticker
			signalType = event.SignalType
			score = event.Score
		}

		key := segmentKey{ticker: ticker, signalType: signalType}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{key: key, scoreSum: decimal.Zero}
			groups[key] = acc
		}

		acc.total++
		switch row.Label {
		case storage.FeedbackUseful:
			acc.useful++
		case storage.FeedbackNoise:
			acc.noise++
		}
		acc.scoreSum = acc.scoreSum.Add(score)
		if row.CreatedAt.After(acc.lastAt) {
			acc.lastAt = row.CreatedAt
		}
	}

	return groups
}

func (acc *accumulator) finalize() Aggregate {
	agg := Aggregate{
		Ticker:         acc.key.ticker,
		SignalType:     acc.key.signalType,
		Total:          acc.total,
		Useful:         acc.useful,
		Noise:          acc.noise,
		AvgScore:       decimal.Zero,
		LastFeedbackAt: acc.lastAt,
	}
	if acc.total > 0 {
		total := float64(acc.total)
		agg.UsefulRatio = float64(acc.useful) / total
		agg.NoiseRatio = float64(acc.noise) / total
		agg.AvgScore = acc.scoreSum.Div(decimal.NewFromInt(int64(acc.total)))
	}
	return agg
}
