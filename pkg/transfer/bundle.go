// Package transfer reads and writes the export bundle
//
//	{ "data": Entry[], "changeLog": ChangeLogRecord[], "exportDate": ISO-8601 }
//
// and renders entries as CSV or YAML.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
)

// DataKey is the bundle field holding the entries.
const DataKey = "data"

// ISOLayout renders instants with millisecond precision in UTC.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidFormat is returned for input that is not a bundle.
var ErrInvalidFormat = errors.New("invalid file format")

// Bundle is a decoded export document. The Has* flags record which
// fields were present; absent fields must not touch the ledger.
type Bundle struct {
	Entries      []core.Entry
	ChangeLog    []core.ChangeLogRecord
	ExportDate   time.Time
	HasEntries   bool
	HasChangeLog bool
	Legacy       bool // data came in the per-floor object shape
}

// FromSnapshot builds a complete bundle.
func FromSnapshot(snap core.Snapshot, now time.Time) Bundle {
	return Bundle{
		Entries:      snap.Entries,
		ChangeLog:    snap.ChangeLog,
		ExportDate:   now,
		HasEntries:   true,
		HasChangeLog: true,
	}
}

type wireBundle struct {
	Data       json.RawMessage `json:"data,omitempty"`
	ChangeLog  json.RawMessage `json:"changeLog,omitempty"`
	ExportDate string          `json:"exportDate,omitempty"`
}

// Marshal renders the bundle as indented JSON.
func Marshal(b Bundle) ([]byte, error) {
	var w wireBundle
	if b.HasEntries {
		data, err := json.Marshal(nonNil(b.Entries))
		if err != nil {
			return nil, fmt.Errorf("failed to encode entries: %w", err)
		}
		w.Data = data
	}
	if b.HasChangeLog {
		data, err := json.Marshal(nonNil(b.ChangeLog))
		if err != nil {
			return nil, fmt.Errorf("failed to encode change log: %w", err)
		}
		w.ChangeLog = data
	}
	if !b.ExportDate.IsZero() {
		w.ExportDate = b.ExportDate.UTC().Format(ISOLayout)
	}
	return json.MarshalIndent(w, "", "  ")
}

// Encode writes the bundle to w.
func Encode(w io.Writer, b Bundle) error {
	data, err := Marshal(b)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Unmarshal parses a bundle. "data" may be the flat entry list or the
// legacy object keyed by floor.
func Unmarshal(data []byte) (Bundle, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if fields == nil {
		return Bundle{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidFormat)
	}

	var b Bundle
	if raw, ok := fields[DataKey]; ok && !isNull(raw) {
		entries, legacy, err := decodeEntries(raw)
		if err != nil {
			return Bundle{}, fmt.Errorf("%w: data: %v", ErrInvalidFormat, err)
		}
		b.Entries, b.Legacy, b.HasEntries = entries, legacy, true
	}
	if raw, ok := fields["changeLog"]; ok && !isNull(raw) {
		var log core.ChangeLog
		if err := json.Unmarshal(raw, &log); err != nil {
			return Bundle{}, fmt.Errorf("%w: changeLog: %v", ErrInvalidFormat, err)
		}
		b.ChangeLog, b.HasChangeLog = log.Records(), true
	}
	if raw, ok := fields["exportDate"]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				b.ExportDate = t
			}
		}
	}
	return b, nil
}

// Decode reads a bundle from r.
func Decode(r io.Reader) (Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Bundle{}, err
	}
	return Unmarshal(data)
}

// Apply replaces the ledger parts present in b, wholesale.
func Apply(ledger *core.Ledger, b Bundle) error {
	switch {
	case b.HasEntries && b.HasChangeLog:
		return ledger.Replace(core.Snapshot{Entries: b.Entries, ChangeLog: b.ChangeLog})
	case b.HasEntries:
		return ledger.ReplaceEntries(b.Entries)
	case b.HasChangeLog:
		ledger.ReplaceChangeLog(b.ChangeLog)
	}
	return nil
}

func decodeEntries(raw json.RawMessage) ([]core.Entry, bool, error) {
	entries, layout, err := core.DecodeEntries(raw)
	if err != nil {
		return nil, false, err
	}
	d, err := core.NewDataset(entries...)
	if err != nil {
		return nil, false, err
	}
	return d.Entries(), layout == core.LayoutFloors, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
