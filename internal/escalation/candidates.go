package escalation

import (
	"encoding/json"
	"fmt"
	"strings"

	"signal-alerts/internal/storage"
)

// DefaultLevel applies when an event payload carries no alert level.
const DefaultLevel = "L1"

// BuildCandidates maps fresh alert events onto gate candidates. The event
// key is coarser than the delivery dedupe key: one key per (ticker, signal
// type) cluster, so cooldown bookkeeping spans delivery windows. The alert
// level is read from the event payload's "level" field when present.
func BuildCandidates(events []storage.AlertEvent) []Candidate {
	candidates := make([]Candidate, 0, len(events))
	for _, event := range events {
		candidates = append(candidates, Candidate{
			EventKey:  fmt.Sprintf("%s:%s", event.Ticker, event.SignalType),
			Level:     payloadLevel(event.Payload),
			CreatedAt: event.CreatedAt,
			Message:   renderCandidateMessage(event),
		})
	}
	return candidates
}

func payloadLevel(payload json.RawMessage) string {
	if len(payload) == 0 {
		return DefaultLevel
	}
	var body struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return DefaultLevel
	}
	if _, ok := levelOrder[body.Level]; !ok {
		return DefaultLevel
	}
	return body.Level
}

func renderCandidateMessage(event storage.AlertEvent) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(event.Ticker), event.Title))
	if event.WhyNow != "" {
		builder.WriteString("\n")
		builder.WriteString(event.WhyNow)
	}
	return builder.String()
}
