// Package core holds the cost-tracking domain: entries, the change log,
// the in-memory ledger and the ports used to reach a remote document store.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	time.Time
}

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO 8601 calendar date ("2025-01-01").
// A full RFC 3339 timestamp is accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return Date{}, fmt.Errorf("%w: invalid date %q", ErrInvalidEntry, s)
		}
		t = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Amount is a currency amount. It is encoded as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

// NewAmount converts a float into an Amount.
func NewAmount(f float64) Amount {
	return amountOf(decimal.NewFromFloat(f))
}

// amountOf stores d in its shortest form so equal amounts compare equal
// regardless of how they were written ("12.50" and "12.5").
func amountOf(d decimal.Decimal) Amount {
	return Amount{decimal.RequireFromString(d.String())}
}

// ParseAmount parses a decimal string. Thousands separators are ignored.
func ParseAmount(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: invalid amount %q", ErrInvalidEntry, s)
	}
	return amountOf(d), nil
}

// MarshalJSON writes the amount without quotes.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*a = Amount{}
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = amountOf(d)
	return nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return amountOf(a.Decimal.Add(b.Decimal))
}

// Entry is one recorded cost line item.
type Entry struct {
	ID       string `json:"id"`
	Date     Date   `json:"date"`
	Category string `json:"category"`
	Amount   Amount `json:"amount"`
	Note     string `json:"note"`
	Group    string `json:"group,omitempty"`
}

// NewEntry parses raw user input into a validated Entry with a fresh ID.
func NewEntry(date, category, amount, note, group string) (Entry, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Entry{}, err
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:       uuid.NewString(),
		Date:     d,
		Category: strings.TrimSpace(category),
		Amount:   a,
		Note:     strings.TrimSpace(note),
		Group:    strings.TrimSpace(group),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Validate reports whether the entry may enter a Dataset.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	case strings.TrimSpace(e.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidEntry)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidEntry)
	}
	return nil
}
