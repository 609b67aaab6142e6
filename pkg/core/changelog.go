package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// MaxChangeLogRecords is the number of records a ChangeLog retains.
const MaxChangeLogRecords = 100

// Action is the kind of change a ChangeLogRecord describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Changes is the action-specific payload of a record.
// Create carries New, delete carries Old, update carries both.
type Changes struct {
	Old *Entry `json:"old,omitempty"`
	New *Entry `json:"new,omitempty"`
}

// ChangeLogRecord is an audit record of one create, update or delete.
type ChangeLogRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	EntryID   string    `json:"entryId"`
	Changes   Changes   `json:"changes"`
	Details   string    `json:"details"`
}

// UnmarshalJSON also reads the older payload form, where a create or
// delete stores the bare entry instead of {"new": ...} or {"old": ...}
// and entries name their category "product_service".
func (r *ChangeLogRecord) UnmarshalJSON(data []byte) error {
	type plain ChangeLogRecord
	var aux struct {
		plain
		Changes json.RawMessage `json:"changes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	changes, err := decodeChanges(aux.Changes, aux.Action, aux.EntryID)
	if err != nil {
		return fmt.Errorf("change log record %s: %w", aux.ID, err)
	}
	*r = ChangeLogRecord(aux.plain)
	r.Changes = changes
	return nil
}

func decodeChanges(raw json.RawMessage, action Action, entryID string) (Changes, error) {
	var c Changes
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return c, err
	}
	if len(fields) == 0 {
		return c, nil
	}

	_, hasOld := fields["old"]
	_, hasNew := fields["new"]
	if !hasOld && !hasNew {
		e, err := decodeChangeEntry(raw, entryID)
		if err != nil {
			return c, err
		}
		if action == ActionDelete {
			c.Old = e
		} else {
			c.New = e
		}
		return c, nil
	}

	var err error
	if c.Old, err = decodeChangeEntry(fields["old"], entryID); err != nil {
		return c, err
	}
	if c.New, err = decodeChangeEntry(fields["new"], entryID); err != nil {
		return c, err
	}
	return c, nil
}

func decodeChangeEntry(raw json.RawMessage, entryID string) (*Entry, error) {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var le looseEntry
	if err := json.Unmarshal(raw, &le); err != nil {
		return nil, err
	}
	e := le.entry("")
	if e.ID == "" {
		e.ID = entryID
	}
	return &e, nil
}

func (r ChangeLogRecord) clone() ChangeLogRecord {
	if r.Changes.Old != nil {
		old := *r.Changes.Old
		r.Changes.Old = &old
	}
	if r.Changes.New != nil {
		n := *r.Changes.New
		r.Changes.New = &n
	}
	return r
}

// ChangeLog keeps the most recent records, newest first.
type ChangeLog struct {
	records []ChangeLogRecord
}

// NewChangeLog builds a log from records already in newest-first order.
// Records beyond MaxChangeLogRecords are dropped.
func NewChangeLog(records ...ChangeLogRecord) *ChangeLog {
	if len(records) > MaxChangeLogRecords {
		records = records[:MaxChangeLogRecords]
	}
	c := &ChangeLog{records: make([]ChangeLogRecord, 0, len(records))}
	for _, r := range records {
		c.records = append(c.records, r.clone())
	}
	return c
}

// Append prepends r, evicting the oldest record beyond the cap.
func (c *ChangeLog) Append(r ChangeLogRecord) {
	c.records = slices.Insert(c.records, 0, r.clone())
	if len(c.records) > MaxChangeLogRecords {
		c.records = c.records[:MaxChangeLogRecords]
	}
}

// Len returns the number of records.
func (c *ChangeLog) Len() int {
	return len(c.records)
}

// Records returns a deep copy, newest first.
func (c *ChangeLog) Records() []ChangeLogRecord {
	out := make([]ChangeLogRecord, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}
	return out
}

// Filter returns the records of the given action, newest first.
// An empty action matches everything.
func (c *ChangeLog) Filter(action Action) []ChangeLogRecord {
	out := []ChangeLogRecord{}
	for _, r := range c.records {
		if action == "" || r.Action == action {
			out = append(out, r.clone())
		}
	}
	return out
}

// MarshalJSON encodes the log as a JSON array ("[]" when empty).
func (c *ChangeLog) MarshalJSON() ([]byte, error) {
	if c == nil || c.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.records)
}

// UnmarshalJSON decodes a JSON array of records.
func (c *ChangeLog) UnmarshalJSON(data []byte) error {
	var records []ChangeLogRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for _, r := range records {
		if !r.Action.Valid() {
			return fmt.Errorf("change log record %s: unknown action %q", r.ID, r.Action)
		}
	}
	*c = *NewChangeLog(records...)
	return nil
}
