package transfer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/transfer"
)

func sampleSnapshot(t *testing.T) core.Snapshot {
	t.Helper()
	e1, err := core.NewEntry("2025-01-10", "Cement", "1200", "50 bags", "Ground")
	require.NoError(t, err)
	e1.ID = "e1"
	e2, err := core.NewEntry("2025-02-01", "Labour", "800.50", "", "First")
	require.NoError(t, err)
	e2.ID = "e2"

	return core.Snapshot{
		Entries: []core.Entry{e1, e2},
		ChangeLog: []core.ChangeLogRecord{{
			ID:        "r1",
			Timestamp: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
			Action:    core.ActionCreate,
			EntryID:   "e2",
			Changes:   core.Changes{New: &e2},
			Details:   "Added new Labour entry for ₹800.5",
		}},
	}
}

func TestBundle_RoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)
	exported := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := transfer.Marshal(transfer.FromSnapshot(snap, exported))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "data")
	assert.Contains(t, raw, "changeLog")
	assert.JSONEq(t, `"2025-03-01T12:00:00.000Z"`, string(raw["exportDate"]))
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"data\""), "expected 2-space indent, got %s", data[:20])

	b, err := transfer.Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, b.HasEntries)
	assert.True(t, b.HasChangeLog)
	assert.False(t, b.Legacy)
	assert.Equal(t, snap.Entries, b.Entries)
	assert.Equal(t, snap.ChangeLog, b.ChangeLog)
	assert.True(t, exported.Equal(b.ExportDate))
}

func TestBundle_EmptyLedger(t *testing.T) {
	data, err := transfer.Marshal(transfer.FromSnapshot(core.NewLedger().Snapshot(), time.Now()))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `[]`, string(raw["data"]))
	assert.JSONEq(t, `[]`, string(raw["changeLog"]))
}

func TestUnmarshal_Rejects(t *testing.T) {
	cases := map[string]string{
		"Not JSON":          `{oops`,
		"Array Top Level":   `[]`,
		"Null":              `null`,
		"Bad Amount":        `{"data":[{"id":"a","date":"2025-01-01","category":"X","amount":0}]}`,
		"Bad Date":          `{"data":[{"id":"a","date":"soon","category":"X","amount":5}]}`,
		"Duplicate IDs":     `{"data":[{"id":"a","date":"2025-01-01","category":"X","amount":5},{"id":"a","date":"2025-01-02","category":"Y","amount":6}]}`,
		"Unknown Action":    `{"changeLog":[{"id":"r","timestamp":"2025-01-01T00:00:00Z","action":"explode","entryId":"a"}]}`,
		"Data Not A List":   `{"data":"nope"}`,
		"Legacy Bad Amount": `{"data":{"Ground":[{"id":"a","date":"2025-01-01","product_service":"X","amount":-1}]}}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := transfer.Unmarshal([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, transfer.ErrInvalidFormat)
		})
	}
}

func TestUnmarshal_Legacy(t *testing.T) {
	input := `{
		"data": {
			"Second": [{"id": 3, "date": "2025-03-01", "product_service": "Tiles", "amount": 300, "note": ""}],
			"Ground": [{"id": 1, "date": "2025-01-01", "product_service": "Cement", "amount": 100, "note": "bags"}],
			"Terrace": [{"id": 4, "date": "2025-04-01", "product_service": "Paint", "amount": 50, "note": ""}],
			"First": [{"id": 2, "date": "2025-02-01", "product_service": "Steel", "amount": "200", "note": ""}]
		}
	}`

	t.Run("Flattens Floors In Display Order", func(t *testing.T) {
		b, err := transfer.Unmarshal([]byte(input))
		require.NoError(t, err)
		assert.True(t, b.Legacy)
		assert.True(t, b.HasEntries)
		assert.False(t, b.HasChangeLog)

		require.Len(t, b.Entries, 4)
		var groups, categories []string
		for _, e := range b.Entries {
			groups = append(groups, e.Group)
			categories = append(categories, e.Category)
		}
		assert.Equal(t, []string{"Ground", "First", "Second", "Terrace"}, groups)
		assert.Equal(t, []string{"Cement", "Steel", "Tiles", "Paint"}, categories)
		assert.Equal(t, "200", b.Entries[1].Amount.String())
		assert.Equal(t, "bags", b.Entries[0].Note)
		assert.Equal(t, "1", b.Entries[0].ID)
	})

	t.Run("String IDs Are Kept", func(t *testing.T) {
		b, err := transfer.Unmarshal([]byte(`{"data":{"Ground":[{"id":"abc","date":"2025-01-01","product_service":"Sand","amount":10}]}}`))
		require.NoError(t, err)
		require.Len(t, b.Entries, 1)
		assert.Equal(t, "abc", b.Entries[0].ID)
		assert.Equal(t, "Sand", b.Entries[0].Category)
	})
}

func TestApply(t *testing.T) {
	snap := sampleSnapshot(t)

	t.Run("Replaces Both Structures", func(t *testing.T) {
		ledger := core.NewLedger()
		require.NoError(t, transfer.Apply(ledger, transfer.FromSnapshot(snap, time.Now())))
		got := ledger.Snapshot()
		assert.Equal(t, snap.Entries, got.Entries)
		assert.Equal(t, snap.ChangeLog, got.ChangeLog)
	})

	t.Run("Absent Change Log Is Untouched", func(t *testing.T) {
		ledger := core.NewLedger()
		require.NoError(t, ledger.Replace(snap))

		b, err := transfer.Unmarshal([]byte(`{"data": []}`))
		require.NoError(t, err)
		require.NoError(t, transfer.Apply(ledger, b))

		got := ledger.Snapshot()
		assert.Empty(t, got.Entries)
		assert.Equal(t, snap.ChangeLog, got.ChangeLog)
	})

	t.Run("Absent Data Is Untouched", func(t *testing.T) {
		ledger := core.NewLedger()
		require.NoError(t, ledger.Replace(snap))

		b, err := transfer.Unmarshal([]byte(`{"changeLog": []}`))
		require.NoError(t, err)
		require.NoError(t, transfer.Apply(ledger, b))

		got := ledger.Snapshot()
		assert.Equal(t, snap.Entries, got.Entries)
		assert.Empty(t, got.ChangeLog)
	})

	t.Run("Empty Object Changes Nothing", func(t *testing.T) {
		ledger := core.NewLedger()
		require.NoError(t, ledger.Replace(snap))
		rev := ledger.Revision()

		b, err := transfer.Decode(bytes.NewReader([]byte(`{"exportDate": "2025-01-01T00:00:00.000Z"}`)))
		require.NoError(t, err)
		require.NoError(t, transfer.Apply(ledger, b))
		assert.Equal(t, rev, ledger.Revision())
	})
}
