package dispatch

import (
	"fmt"
	"strings"
)

// Field caps applied before composing the dedupe key. Truncation keeps the
// key bounded for the unique index; key collisions introduced by truncation
// are an accepted trade-off of the key scheme, not silently compensated for.
const (
	maxUserIDLen       = 64
	maxTickerLen       = 16
	maxSignalTypeLen   = 32
	maxDedupeWindowLen = 40
	maxDedupeKeyLen    = 180
)

// BuildDedupeKey composes the deterministic at-most-once delivery key.
func BuildDedupeKey(channel, userID, ticker, signalType, window string) string {
	key := fmt.Sprintf("%s:%s:%s:%s:%s",
		channel,
		truncate(normalize(userID), maxUserIDLen),
		truncate(normalize(ticker), maxTickerLen),
		truncate(normalize(signalType), maxSignalTypeLen),
		truncate(normalize(window), maxDedupeWindowLen),
	)
	return truncate(key, maxDedupeKeyLen)
}

func normalize(v string) string {
	return strings.TrimSpace(v)
}

func truncate(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}
