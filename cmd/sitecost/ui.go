package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/aretw0/sitecost/pkg/core"
)

var (
	bold    = lipgloss.NewStyle().Bold(true)
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	good    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	bad     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	accent  = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	cell    = lipgloss.NewStyle().Padding(0, 1)
	numeric = cell.Align(lipgloss.Right)
)

// newTable renders rows with a bold header. Columns listed in right are
// right-aligned.
func newTable(headers []string, rows [][]string, right ...int) *table.Table {
	aligned := make(map[int]bool, len(right))
	for _, c := range right {
		aligned[c] = true
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cell
			if aligned[col] {
				style = numeric
			}
			if row == table.HeaderRow {
				return style.Inherit(bold)
			}
			return style
		})
}

// money formats an amount with thousands separators and the currency.
func money(currency string, a core.Amount) string {
	return currency + humanize.CommafWithDigits(a.InexactFloat64(), 2)
}

// ago renders t relative to now, or "never".
func ago(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.Time(*t)
}

func stateStyle(s core.SyncState) lipgloss.Style {
	switch s {
	case core.StateOnline:
		return good
	case core.StateSyncing:
		return accent
	}
	return bad
}

func success(format string, args ...any) {
	fmt.Fprintln(os.Stdout, good.Render("✓")+" "+fmt.Sprintf(format, args...))
}
