package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/query"
)

func TestSummarize(t *testing.T) {
	totals := query.Summarize(fixture(t))

	assert.Equal(t, "5000", totals.Total.String())
	assert.Equal(t, 5, totals.Count)
	require.Len(t, totals.Groups, 3)

	var names []string
	for _, g := range totals.Groups {
		names = append(names, g.Group)
	}
	assert.Equal(t, []string{"Ground", "First", "Second"}, names)

	first, ok := totals.Group("First")
	require.True(t, ok)
	assert.Equal(t, "2600", first.Total.String())
	assert.Equal(t, 2, first.Count)

	_, ok = totals.Group("Terrace")
	assert.False(t, ok)

	empty := query.Summarize(nil)
	assert.Equal(t, "0", empty.Total.String())
	assert.NotNil(t, empty.Groups)
}

func TestAnalyzeCategory(t *testing.T) {
	t.Run("Share Of Total", func(t *testing.T) {
		a := query.AnalyzeCategory(fixture(t), "Cement")
		assert.Equal(t, "1600", a.Total.String())
		assert.Equal(t, 2, a.Count)
		assert.Equal(t, 32.0, a.Percentage)
		require.Len(t, a.Groups, 2)
		assert.Equal(t, "Ground", a.Groups[0].Group)
		assert.Equal(t, "1000", a.Groups[0].Total.String())
	})

	t.Run("Rounds To One Decimal", func(t *testing.T) {
		// 401 of 5001
		entries := append(fixture(t), entry(t, "6", "2025-04-01", "Sand", "1", "", "Ground"))
		a := query.AnalyzeCategory(entries, "Sand")
		assert.Equal(t, 8.0, a.Percentage)

		entries = []core.Entry{
			entry(t, "a", "2025-01-01", "X", "1", "", ""),
			entry(t, "b", "2025-01-01", "Y", "2", "", ""),
		}
		assert.Equal(t, 33.3, query.AnalyzeCategory(entries, "X").Percentage)
	})

	t.Run("Unknown Category", func(t *testing.T) {
		a := query.AnalyzeCategory(fixture(t), "Paint")
		assert.Zero(t, a.Count)
		assert.Zero(t, a.Percentage)
		assert.Empty(t, a.Groups)
	})

	t.Run("No Entries", func(t *testing.T) {
		a := query.AnalyzeCategory(nil, "Cement")
		assert.Zero(t, a.Percentage)
	})
}
