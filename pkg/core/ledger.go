package core

import (
	"encoding/json"
	"sync"
)

// Snapshot is a detached copy of the ledger contents.
type Snapshot struct {
	Entries   []Entry           `json:"data"`
	ChangeLog []ChangeLogRecord `json:"changeLog"`
}

// Digest identifies the contents of s: equal snapshots share a digest.
func (s Snapshot) Digest() string {
	if s.Entries == nil {
		s.Entries = []Entry{}
	}
	if s.ChangeLog == nil {
		s.ChangeLog = []ChangeLogRecord{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return ContentToken(data)
}

// Empty reports whether s holds neither entries nor records.
func (s Snapshot) Empty() bool {
	return len(s.Entries) == 0 && len(s.ChangeLog) == 0
}

// Ledger owns the Dataset and the ChangeLog of one application instance.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	data     *Dataset
	log      *ChangeLog
	revision uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		data: &Dataset{entries: []Entry{}},
		log:  NewChangeLog(),
	}
}

// Snapshot returns deep copies of both structures.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Entries:   l.data.Entries(),
		ChangeLog: l.log.Records(),
	}
}

// Dataset returns a copy of the current dataset.
func (l *Ledger) Dataset() *Dataset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Dataset{entries: l.data.Entries()}
}

// ChangeLog returns a copy of the current change log.
func (l *Ledger) ChangeLog() *ChangeLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return NewChangeLog(l.log.records...)
}

// Revision increases on every successful mutation.
func (l *Ledger) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

// Replace swaps both structures wholesale.
func (l *Ledger) Replace(s Snapshot) error {
	data, err := NewDataset(s.Entries...)
	if err != nil {
		return err
	}
	log := NewChangeLog(s.ChangeLog...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.data, l.log = data, log
	l.revision++
	return nil
}

// ReplaceEntries swaps the dataset, leaving the change log as is.
func (l *Ledger) ReplaceEntries(entries []Entry) error {
	data, err := NewDataset(entries...)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = data
	l.revision++
	return nil
}

// ReplaceChangeLog swaps the change log, leaving the dataset as is.
func (l *Ledger) ReplaceChangeLog(records []ChangeLogRecord) {
	log := NewChangeLog(records...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = log
	l.revision++
}

// Mutate runs fn against working copies and commits them only if fn
// succeeds. The ledger is never left half-updated.
func (l *Ledger) Mutate(fn func(data *Dataset, log *ChangeLog) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := &Dataset{entries: l.data.Entries()}
	log := NewChangeLog(l.log.records...)
	if err := fn(data, log); err != nil {
		return err
	}
	l.data, l.log = data, log
	l.revision++
	return nil
}
