package query

import (
	"github.com/shopspring/decimal"

	"github.com/aretw0/sitecost/pkg/core"
)

// GroupTotal is the spend of one group.
type GroupTotal struct {
	Group string      `json:"group"`
	Total core.Amount `json:"total"`
	Count int         `json:"count"`
}

// Totals summarizes spend per group plus the grand total.
type Totals struct {
	Groups []GroupTotal `json:"groups"`
	Total  core.Amount  `json:"total"`
	Count  int          `json:"count"`
}

// Group returns the total of one group.
func (t Totals) Group(name string) (GroupTotal, bool) {
	for _, g := range t.Groups {
		if g.Group == name {
			return g, true
		}
	}
	return GroupTotal{Group: name}, false
}

// Summarize totals entries per group. Groups appear in the order they are
// first seen.
func Summarize(entries []core.Entry) Totals {
	var t Totals
	index := make(map[string]int)
	for _, e := range entries {
		i, ok := index[e.Group]
		if !ok {
			i = len(t.Groups)
			index[e.Group] = i
			t.Groups = append(t.Groups, GroupTotal{Group: e.Group})
		}
		t.Groups[i].Total = t.Groups[i].Total.Add(e.Amount)
		t.Groups[i].Count++
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}
	if t.Groups == nil {
		t.Groups = []GroupTotal{}
	}
	return t
}

// CategoryAnalysis is the spend on one category, broken down by group.
type CategoryAnalysis struct {
	Category   string       `json:"category"`
	Groups     []GroupTotal `json:"groups"`
	Total      core.Amount  `json:"total"`
	Count      int          `json:"count"`
	Percentage float64      `json:"percentage"` // of all spend, one decimal
}

// AnalyzeCategory reports the spend on category across all groups and
// its share of total spend.
func AnalyzeCategory(entries []core.Entry, category string) CategoryAnalysis {
	var matching []core.Entry
	for _, e := range entries {
		if e.Category == category {
			matching = append(matching, e)
		}
	}
	sub := Summarize(matching)
	all := Summarize(entries)

	a := CategoryAnalysis{
		Category: category,
		Groups:   sub.Groups,
		Total:    sub.Total,
		Count:    sub.Count,
	}
	if !all.Total.IsZero() {
		pct := sub.Total.Decimal.Div(all.Total.Decimal).Mul(decimal.NewFromInt(100)).Round(1)
		a.Percentage = pct.InexactFloat64()
	}
	return a
}
