package escalation

import (
	"fmt"
	"time"
)

// Alert levels in ascending severity. A strictly higher level for the same
// event key always bypasses cooldown suppression.
var levelOrder = map[string]int{
	"L0": 0,
	"L1": 1,
	"L2": 2,
	"L3": 3,
	"L4": 4,
}

// LevelRank returns the ordinal of an alert level; unknown levels rank lowest.
func LevelRank(level string) int {
	if rank, ok := levelOrder[level]; ok {
		return rank
	}
	return 0
}

// Candidate is one notification proposed for delivery through the gate.
type Candidate struct {
	EventKey  string
	Level     string
	CreatedAt time.Time
	Message   string
}

// ShouldSend decides whether a candidate goes out, given the prior ledger
// entry for its event key (nil when the key has never fired). Rules apply
// in order: first send, escalation override, cooldown elapsed, suppress.
func ShouldSend(candidate Candidate, prior *LedgerEntry, cooldown time.Duration) (bool, string) {
	if prior == nil {
		return true, "first send"
	}
	if LevelRank(candidate.Level) > LevelRank(prior.Level) {
		return true, fmt.Sprintf("level escalated %s→%s", prior.Level, candidate.Level)
	}
	if candidate.CreatedAt.Sub(prior.SentAt) >= cooldown {
		return true, "cooldown elapsed"
	}
	return false, "cooling down, no escalation"
}
