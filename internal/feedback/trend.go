package feedback

import (
	"sort"
	"time"

	"signal-alerts/internal/storage"
)

// DefaultTopSegments bounds the noisy-segment ranking.
const DefaultTopSegments = 20

// DailyPoint is one UTC calendar day of feedback counts.
type DailyPoint struct {
	Date   string
	Total  int
	Useful int
	Noise  int
}

// BuildTrend buckets feedback by UTC calendar day over the trailing window
// and ranks the noisiest segments. Days without feedback render as zero
// points rather than being absent. The segment ranking answers "which
// segments are burning the most trust": noise ratio dominates raw volume.
func BuildTrend(rows []storage.FeedbackRecord, index EventIndex, days, topN int) ([]DailyPoint, []Aggregate) {
	return buildTrendAt(rows, index, days, topN, time.Now().UTC())
}

func buildTrendAt(rows []storage.FeedbackRecord, index EventIndex, days, topN int, now time.Time) ([]DailyPoint, []Aggregate) {
	if days <= 0 {
		days = 1
	}
	if topN <= 0 {
		topN = DefaultTopSegments
	}

	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))

	series := make([]DailyPoint, days)
	byDate := make(map[string]*DailyPoint, days)
	for i := 0; i < days; i++ {
		date := first.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = DailyPoint{Date: date}
		byDate[date] = &series[i]
	}

	inWindow := make([]storage.FeedbackRecord, 0, len(rows))
	for _, row := range rows {
		date := row.CreatedAt.UTC().Format("2006-01-02")
		point, ok := byDate[date]
		if !ok {
			// outside the trailing window
			continue
		}
		point.Total++
		switch row.Label {
		case storage.FeedbackUseful:
			point.Useful++
		case storage.FeedbackNoise:
			point.Noise++
		}
		inWindow = append(inWindow, row)
	}

	segments := rankNoisySegments(inWindow, index, topN)
	return series, segments
}

func rankNoisySegments(rows []storage.FeedbackRecord, index EventIndex, topN int) []Aggregate {
	groups := groupFeedback(rows, index)

	segments := make([]Aggregate, 0, len(groups))
	for _, acc := range groups {
		segments = append(segments, acc.finalize())
	}

	sort.Slice(segments, func(i, j int) bool {
		if segments[i].NoiseRatio != segments[j].NoiseRatio {
			return segments[i].NoiseRatio > segments[j].NoiseRatio
		}
		if segments[i].Total != segments[j].Total {
			return segments[i].Total > segments[j].Total
		}
		return segments[i].UsefulRatio < segments[j].UsefulRatio
	})

	if len(segments) > topN {
		segments = segments[:topN]
	}
	return segments
}
