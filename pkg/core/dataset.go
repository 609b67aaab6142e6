package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Dataset is the ordered collection of entries, keyed by ID. It
// remembers the Layout it was decoded from and encodes back into it.
type Dataset struct {
	entries []Entry
	layout  Layout
}

// NewDataset builds a Dataset, rejecting invalid or duplicate entries.
func NewDataset(entries ...Entry) (*Dataset, error) {
	d := &Dataset{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if err := d.Add(e); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dataset) indexOf(id string) int {
	return slices.IndexFunc(d.entries, func(e Entry) bool { return e.ID == id })
}

// Add appends a new entry.
func (d *Dataset) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if d.indexOf(e.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
	}
	d.entries = append(d.entries, e)
	return nil
}

// Update replaces the entry with the same ID and returns the previous value.
func (d *Dataset) Update(e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	i := d.indexOf(e.ID)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, e.ID)
	}
	old := d.entries[i]
	d.entries[i] = e
	return old, nil
}

// Delete removes an entry and returns it.
func (d *Dataset) Delete(id string) (Entry, error) {
	i := d.indexOf(id)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	old := d.entries[i]
	d.entries = slices.Delete(d.entries, i, i+1)
	return old, nil
}

// Get looks an entry up by ID.
func (d *Dataset) Get(id string) (Entry, error) {
	i := d.indexOf(id)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return d.entries[i], nil
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	return len(d.entries)
}

// Entries returns a copy of the entries in insertion order.
func (d *Dataset) Entries() []Entry {
	return append([]Entry{}, d.entries...)
}

// Layout returns the JSON shape the dataset encodes to.
func (d *Dataset) Layout() Layout {
	return d.layout
}

// SetLayout selects the JSON shape the dataset encodes to.
func (d *Dataset) SetLayout(l Layout) {
	d.layout = l
}

// Categories returns the distinct categories, sorted.
func (d *Dataset) Categories() []string {
	return distinct(d.entries, func(e Entry) string { return e.Category })
}

// Groups returns the distinct non-empty group tags, sorted.
func (d *Dataset) Groups() []string {
	return distinct(d.entries, func(e Entry) string { return e.Group })
}

func distinct(entries []Entry, key func(Entry) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range entries {
		k := key(e)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the dataset as a JSON array ("[]" when empty),
// or as the per-floor object under LayoutFloors.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	if d.layout == LayoutFloors {
		return encodeFloors(d.entries)
	}
	if d.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.entries)
}

// UnmarshalJSON decodes either layout, enforcing entry invariants.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	entries, layout, err := DecodeEntries(data)
	if err != nil {
		return err
	}
	parsed, err := NewDataset(entries...)
	if err != nil {
		return err
	}
	parsed.layout = layout
	*d = *parsed
	return nil
}
