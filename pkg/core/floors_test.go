package core_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/core"
)

func TestDecodeEntries(t *testing.T) {
	t.Run("Flat", func(t *testing.T) {
		entries, layout, err := core.DecodeEntries([]byte(` [{"id":"a","date":"2025-01-01","category":"Cement","amount":10,"note":"","group":"Ground"}]`))
		require.NoError(t, err)
		assert.Equal(t, core.LayoutFlat, layout)
		require.Len(t, entries, 1)
		assert.Equal(t, "Ground", entries[0].Group)
	})

	t.Run("Floors In Display Order", func(t *testing.T) {
		entries, layout, err := core.DecodeEntries([]byte(`{
			"Terrace": [{"id": 9, "date": "2025-04-01", "product_service": "Paint", "amount": 50, "note": ""}],
			"First": [{"id": "first_1", "date": "2025-02-01", "product_service": "Steel", "amount": "200", "note": "", "floor": "First"}],
			"Ground": [{"id": "house_1", "date": "2025-01-01", "product_service": "Cement", "amount": 100, "note": "bags"}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, core.LayoutFloors, layout)

		var ids, groups []string
		for _, e := range entries {
			ids = append(ids, e.ID)
			groups = append(groups, e.Group)
		}
		assert.Equal(t, []string{"house_1", "first_1", "9"}, ids)
		assert.Equal(t, []string{"Ground", "First", "Terrace"}, groups)
		assert.Equal(t, "Cement", entries[0].Category)
		assert.Equal(t, "200", entries[1].Amount.String())
	})

	t.Run("Malformed", func(t *testing.T) {
		_, _, err := core.DecodeEntries([]byte(`{"Ground": 3}`))
		assert.Error(t, err)
	})
}

func TestDataset_FloorLayout(t *testing.T) {
	var d core.Dataset
	require.NoError(t, json.Unmarshal([]byte(`{"Ground":[{"id":"house_1","date":"2025-03-12","product_service":"Labour","amount":1000,"note":"JCB"}]}`), &d))
	assert.Equal(t, core.LayoutFloors, d.Layout())

	e, err := core.NewEntry("2025-03-13", "Bescom", "18000", "", "")
	require.NoError(t, err)
	e.ID = "house_2"
	require.NoError(t, d.Add(e))

	out, err := json.Marshal(&d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Ground": [
			{"id":"house_1","date":"2025-03-12","product_service":"Labour","amount":1000,"note":"JCB"},
			{"id":"house_2","date":"2025-03-13","product_service":"Bescom","amount":18000,"note":""}
		],
		"First": [],
		"Second": []
	}`, string(out))

	d.SetLayout(core.LayoutFlat)
	out, err = json.Marshal(&d)
	require.NoError(t, err)
	assert.Equal(t, core.LayoutFlat, core.DetectLayout(out))
}

func TestChangeLogRecord_BarePayload(t *testing.T) {
	var log core.ChangeLog
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"r3","timestamp":"2025-03-14T10:00:00Z","action":"update","entryId":"house_1",
		 "changes":{"old":{"id":"house_1","date":"2025-03-12","product_service":"Labour","amount":1000,"note":"","floor":"Ground"},
		            "new":{"id":"house_1","date":"2025-03-12","product_service":"Labour","amount":1200,"note":"","floor":"Ground"}},
		 "details":"Updated Labour entry"},
		{"id":"r2","timestamp":"2025-03-13T10:00:00Z","action":"delete","entryId":"house_2",
		 "changes":{"id":"house_2","date":"2025-03-12","product_service":"Sand","amount":40,"note":""},
		 "details":"Deleted Sand entry"},
		{"id":"r1","timestamp":"2025-03-12T10:00:00Z","action":"create","entryId":"house_1",
		 "changes":{"date":"2025-03-12","product_service":"Labour","amount":1000,"note":"JCB"},
		 "details":"Added new Labour entry"}
	]`), &log))

	records := log.Records()
	require.Len(t, records, 3)

	update := records[0].Changes
	require.NotNil(t, update.Old)
	require.NotNil(t, update.New)
	assert.Equal(t, "1200", update.New.Amount.String())
	assert.Equal(t, "Ground", update.Old.Group)

	deleted := records[1].Changes
	require.NotNil(t, deleted.Old)
	assert.Nil(t, deleted.New)
	assert.Equal(t, "Sand", deleted.Old.Category)

	created := records[2].Changes
	require.NotNil(t, created.New)
	assert.Nil(t, created.Old)
	assert.Equal(t, "house_1", created.New.ID)
	assert.Equal(t, "JCB", created.New.Note)
}

func TestChangeLogRecord_CurrentPayloadUnchanged(t *testing.T) {
	e, err := core.NewEntry("2025-01-01", "Cement", "100", "", "Ground")
	require.NoError(t, err)
	in := core.ChangeLogRecord{ID: "r1", Action: core.ActionCreate, EntryID: e.ID, Changes: core.Changes{New: &e}, Details: "added"}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out core.ChangeLogRecord
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
