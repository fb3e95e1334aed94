package escalation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LedgerEntry records the last notification sent for an event key.
type LedgerEntry struct {
	Level  string    `json:"level"`
	SentAt time.Time `json:"sent_at"`
}

// Ledger is the persisted cooldown state for the escalation gate. It is
// loaded once at run start, mutated in memory on every send decision, and
// saved once at run end. Losing the file is tolerable: the worst case is a
// duplicate notification, never a missed escalation, because escalation is
// re-derived from the candidate's own level each run. Concurrent runs
// against the same ledger path are not safe and must be serialized by the
// caller.
type Ledger struct {
	Events map[string]LedgerEntry `json:"events"`
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{Events: make(map[string]LedgerEntry)}
}

// LoadLedger reads a ledger document from disk. A missing file yields an
// empty ledger rather than an error.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLedger(), nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	ledger := NewLedger()
	if err := json.Unmarshal(data, ledger); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	if ledger.Events == nil {
		ledger.Events = make(map[string]LedgerEntry)
	}
	return ledger, nil
}

// Get returns the entry for an event key, or nil when the key never fired.
func (l *Ledger) Get(eventKey string) *LedgerEntry {
	entry, ok := l.Events[eventKey]
	if !ok {
		return nil
	}
	return &entry
}

// Record updates the ledger after a send decision.
func (l *Ledger) Record(eventKey, level string, sentAt time.Time) {
	l.Events[eventKey] = LedgerEntry{Level: level, SentAt: sentAt}
}

// Save writes the ledger atomically via a temp file and rename.
func (l *Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
