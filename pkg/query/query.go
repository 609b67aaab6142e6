// Package query filters, sorts, pages and summarizes ledger entries.
package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/sitecost/pkg/core"
)

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Group    string
	Category string // doublestar glob, case-insensitive ("cem*", "{sand,gravel}")
	From     core.Date
	To       core.Date // inclusive
	Text     string    // substring of category, note or group
}

// Validate reports a malformed category pattern.
func (f Filter) Validate() error {
	if f.Category != "" && !doublestar.ValidatePattern(strings.ToLower(f.Category)) {
		return fmt.Errorf("invalid category pattern %q", f.Category)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return fmt.Errorf("date range ends before it starts")
	}
	return nil
}

// Match reports whether e passes the filter.
func (f Filter) Match(e core.Entry) bool {
	if f.Group != "" && !strings.EqualFold(f.Group, e.Group) {
		return false
	}
	if f.Category != "" {
		ok, err := doublestar.Match(strings.ToLower(f.Category), strings.ToLower(e.Category))
		if err != nil || !ok {
			return false
		}
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		hay := strings.ToLower(e.Category + "\x00" + e.Note + "\x00" + e.Group)
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

// Select returns the entries matching f, in their original order.
func Select(entries []core.Entry, f Filter) []core.Entry {
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortField names an orderable entry attribute.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"
)

// Sort orders entries. Ties keep their original order.
type Sort struct {
	Field SortField
	Desc  bool
}

// ParseSort parses "date", "-amount" and the like. A leading "-" sorts descending.
func ParseSort(s string) (Sort, error) {
	var out Sort
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		out.Desc = true
		s = s[1:]
	}
	switch SortField(s) {
	case SortByDate, SortByAmount, SortByCategory:
		out.Field = SortField(s)
	case "":
		out.Field = SortByDate
	default:
		return Sort{}, fmt.Errorf("unknown sort field %q (want date, amount or category)", s)
	}
	return out, nil
}

// Apply returns a sorted copy of entries.
func (s Sort) Apply(entries []core.Entry) []core.Entry {
	out := slices.Clone(entries)
	cmp := func(a, b core.Entry) int {
		switch s.Field {
		case SortByAmount:
			return a.Amount.Cmp(b.Amount.Decimal)
		case SortByCategory:
			return strings.Compare(strings.ToLower(a.Category), strings.ToLower(b.Category))
		default:
			return a.Date.Compare(b.Date.Time)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Entry) int {
		if s.Desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	return out
}

// Page is one slice of a result set. Number is 1-based.
type Page struct {
	Items  []core.Entry `json:"items"`
	Total  int          `json:"total"`
	Number int          `json:"page"`
	Size   int          `json:"size"`
	Pages  int          `json:"pages"`
}

// Paginate returns page number (1-based) of the given size. A size <= 0
// returns everything on one page; numbers past the end yield no items.
func Paginate(entries []core.Entry, number, size int) Page {
	total := len(entries)
	if size <= 0 {
		size = max(total, 1)
	}
	if number < 1 {
		number = 1
	}
	pages := (total + size - 1) / size

	start := min((number-1)*size, total)
	end := min(start+size, total)
	return Page{
		Items:  slices.Clone(entries[start:end]),
		Total:  total,
		Number: number,
		Size:   size,
		Pages:  pages,
	}
}
