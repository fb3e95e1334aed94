package escalation

import (
	"strings"
	"testing"
	"time"
)

func TestShouldSendFirstSend(t *testing.T) {
	candidate := Candidate{EventKey: "sentinel:AAPL", Level: "L1", CreatedAt: time.Now()}

	send, reason := ShouldSend(candidate, nil, 30*time.Minute)
	if !send {
		t.Fatal("first send must pass the gate")
	}
	if reason != "first send" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestShouldSendEscalationOverridesCooldown(t *testing.T) {
	sentAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	prior := &LedgerEntry{Level: "L1", SentAt: sentAt}
	candidate := Candidate{
		EventKey:  "sentinel:AAPL",
		Level:     "L3",
		CreatedAt: sentAt.Add(time.Minute),
	}

	send, reason := ShouldSend(candidate, prior, 30*time.Minute)
	if !send {
		t.Fatal("escalation must override cooldown")
	}
	if !strings.HasPrefix(reason, "level escalated") {
		t.Fatalf("reason = %q", reason)
	}
}

func TestShouldSendSuppressedDuringCooldown(t *testing.T) {
	sentAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	prior := &LedgerEntry{Level: "L2", SentAt: sentAt}
	candidate := Candidate{
		EventKey:  "sentinel:AAPL",
		Level:     "L2",
		CreatedAt: sentAt.Add(10 * time.Minute),
	}

	send, reason := ShouldSend(candidate, prior, 30*time.Minute)
	if send {
		t.Fatalf("same level within cooldown must be suppressed, reason %q", reason)
	}
}

func TestShouldSendCooldownElapsed(t *testing.T) {
	sentAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	prior := &LedgerEntry{Level: "L2", SentAt: sentAt}
	candidate := Candidate{
		EventKey:  "sentinel:AAPL",
		Level:     "L2",
		CreatedAt: sentAt.Add(30 * time.Minute),
	}

	send, reason := ShouldSend(candidate, prior, 30*time.Minute)
	if !send {
		t.Fatal("elapsed cooldown must pass the gate")
	}
	if reason != "cooldown elapsed" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestShouldSendLowerLevelStaysSuppressed(t *testing.T) {
	sentAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	prior := &LedgerEntry{Level: "L3", SentAt: sentAt}
	candidate := Candidate{
		EventKey:  "sentinel:AAPL",
		Level:     "L1",
		CreatedAt: sentAt.Add(5 * time.Minute),
	}

	if send, _ := ShouldSend(candidate, prior, 30*time.Minute); send {
		t.Fatal("de-escalation within cooldown must not send")
	}
}
