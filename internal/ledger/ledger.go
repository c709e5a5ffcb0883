// Package ledger keeps the append-only record of past payment decisions
// and supplies the time-windowed aggregates the policy evaluator reads.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclaw/paygate/internal/model"
)

// ApprovedBy tags who made the final call on an entry.
const (
	ByAuto  = "auto"
	ByHuman = "human"
)

// Entry is one immutable record. Entries are never mutated or deleted.
type Entry struct {
	ID         string               `json:"id"`
	Timestamp  time.Time            `json:"timestamp"`
	Request    model.PaymentRequest `json:"request"`
	Result     model.PolicyResult   `json:"result"`
	Approved   bool                 `json:"approved"`
	ApprovedBy string               `json:"approved_by"`
	PolicyHash string               `json:"policy_hash,omitempty"`
}

// Ledger is a single-writer, insertion-order-preserving sequence persisted
// as one JSON document. When disabled, history reads as empty — daily and
// monthly limits are then effectively unenforced, a documented trade-off.
type Ledger struct {
	path     string
	disabled bool
	mu       sync.Mutex
}

// New creates a Ledger persisting at path. disabled turns all operations
// into no-ops that report zero spend.
func New(path string, disabled bool) *Ledger {
	return &Ledger{path: path, disabled: disabled}
}

// Disabled reports whether logging is turned off.
func (l *Ledger) Disabled() bool { return l.disabled }

// Append adds one entry. The whole operation succeeds or fails; a reader
// never observes a partial write (temp file + rename).
func (l *Ledger) Append(e Entry) error {
	if l.disabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readLocked()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return l.writeLocked(entries)
}

// List returns all entries in insertion order.
func (l *Ledger) List() ([]Entry, error) {
	if l.disabled {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

// SpentToday sums approved amounts from entries timestamped within the
// current local calendar day.
func (l *Ledger) SpentToday(now time.Time) (float64, error) {
	return l.sumApproved(now, sameDay)
}

// SpentThisMonth sums approved amounts from entries timestamped within the
// current local calendar month.
func (l *Ledger) SpentThisMonth(now time.Time) (float64, error) {
	return l.sumApproved(now, sameMonth)
}

func (l *Ledger) sumApproved(now time.Time, in func(a, b time.Time) bool) (float64, error) {
	if l.disabled {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readLocked()
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, e := range entries {
		if e.Approved && in(e.Timestamp.Local(), now.Local()) {
			sum += e.Request.Amount
		}
	}
	return sum, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

func (l *Ledger) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	return entries, nil
}

func (l *Ledger) writeLocked(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}
