package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Layout is the JSON shape of a data document.
type Layout int

const (
	// LayoutFlat is an array of entries, each tagged with its group.
	LayoutFlat Layout = iota
	// LayoutFloors is an object keyed by floor, each holding its entries
	// with the category stored as "product_service". Documents written by
	// the browser tracker use it.
	LayoutFloors
)

func (l Layout) String() string {
	if l == LayoutFloors {
		return "floors"
	}
	return "flat"
}

// FloorGroups are the keys of the per-floor layout, in display order.
var FloorGroups = []string{"Ground", "First", "Second"}

// looseID accepts the numeric ids of older documents.
type looseID string

func (id *looseID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = looseID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = looseID(s)
	return nil
}

// looseEntry reads an entry in either naming. Floor documents spell the
// category "product_service" and may carry the floor inline.
type looseEntry struct {
	ID             looseID `json:"id"`
	Date           Date    `json:"date"`
	Category       string  `json:"category"`
	ProductService string  `json:"product_service"`
	Amount         Amount  `json:"amount"`
	Note           string  `json:"note"`
	Group          string  `json:"group"`
	Floor          string  `json:"floor"`
}

func (le looseEntry) entry(group string) Entry {
	category := le.Category
	if category == "" {
		category = le.ProductService
	}
	if group == "" {
		group = le.Group
	}
	if group == "" {
		group = le.Floor
	}
	return Entry{
		ID:       string(le.ID),
		Date:     le.Date,
		Category: category,
		Amount:   le.Amount,
		Note:     le.Note,
		Group:    group,
	}
}

// floorEntry is the per-floor wire form of an entry.
type floorEntry struct {
	ID             string `json:"id"`
	Date           Date   `json:"date"`
	ProductService string `json:"product_service"`
	Amount         Amount `json:"amount"`
	Note           string `json:"note"`
}

// DecodeEntries parses a data document in either layout and reports
// which one it found. Entries of the floors layout are flattened in
// FloorGroups order, unknown floors following alphabetically.
func DecodeEntries(data []byte) ([]Entry, Layout, error) {
	trimmed := bytes.TrimSpace(data)
	if DetectLayout(trimmed) == LayoutFlat {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, LayoutFlat, err
		}
		return entries, LayoutFlat, nil
	}

	var floors map[string][]looseEntry
	if err := json.Unmarshal(trimmed, &floors); err != nil {
		return nil, LayoutFloors, err
	}
	var entries []Entry
	for _, group := range floorOrder(floors) {
		for _, le := range floors[group] {
			entries = append(entries, le.entry(group))
		}
	}
	return entries, LayoutFloors, nil
}

func floorOrder[T any](floors map[string]T) []string {
	order := make([]string, 0, len(floors))
	for _, g := range FloorGroups {
		if _, ok := floors[g]; ok {
			order = append(order, g)
		}
	}
	var rest []string
	for g := range floors {
		if !slices.Contains(FloorGroups, g) {
			rest = append(rest, g)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// encodeFloors renders entries in the floors layout. Every FloorGroups
// key is present; untagged entries land on the first floor.
func encodeFloors(entries []Entry) ([]byte, error) {
	floors := make(map[string][]floorEntry, len(FloorGroups))
	for _, g := range FloorGroups {
		floors[g] = []floorEntry{}
	}
	for _, e := range entries {
		group := e.Group
		if group == "" {
			group = FloorGroups[0]
		}
		floors[group] = append(floors[group], floorEntry{
			ID:             e.ID,
			Date:           e.Date,
			ProductService: e.Category,
			Amount:         e.Amount,
			Note:           e.Note,
		})
	}

	// Keys are written in display order rather than map order.
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range floorOrder(floors) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		list, err := json.Marshal(floors[g])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(list)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DetectLayout reports the layout of a data document without decoding it.
func DetectLayout(data []byte) Layout {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return LayoutFloors
	}
	return LayoutFlat
}
