package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/core"
)

func newTestService() *core.Service {
	n := 0
	clock := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return core.NewService(core.NewLedger(),
		core.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		core.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func mustEntry(t *testing.T, id, date, category, amount, group string) core.Entry {
	t.Helper()
	e, err := core.NewEntry(date, category, amount, "", group)
	require.NoError(t, err)
	e.ID = id
	return e
}

func TestService_CRUD(t *testing.T) {
	svc := newTestService()

	t.Run("Add Records A Create", func(t *testing.T) {
		e := mustEntry(t, "", "2025-01-01", "Cement", "100", "Ground")
		added, err := svc.AddEntry(e)
		require.NoError(t, err)
		assert.Equal(t, "id-1", added.ID)

		log := svc.ChangeLog()
		require.Len(t, log, 1)
		assert.Equal(t, core.ActionCreate, log[0].Action)
		assert.Equal(t, "id-1", log[0].EntryID)
		assert.Equal(t, "Added new Cement entry for ₹100", log[0].Details)
		require.NotNil(t, log[0].Changes.New)
		assert.Nil(t, log[0].Changes.Old)
	})

	t.Run("Update Records Old And New", func(t *testing.T) {
		e, err := svc.GetEntry("id-1")
		require.NoError(t, err)
		e.Amount, _ = core.ParseAmount("150")

		old, err := svc.UpdateEntry(e)
		require.NoError(t, err)
		assert.Equal(t, "100", old.Amount.String())

		log := svc.ChangeLog()
		require.Len(t, log, 2)
		assert.Equal(t, core.ActionUpdate, log[0].Action)
		assert.Equal(t, "Updated Cement entry", log[0].Details)
		assert.Equal(t, "100", log[0].Changes.Old.Amount.String())
		assert.Equal(t, "150", log[0].Changes.New.Amount.String())
	})

	t.Run("Delete Records The Removed Entry", func(t *testing.T) {
		_, err := svc.DeleteEntry("id-1")
		require.NoError(t, err)
		assert.Empty(t, svc.Entries())

		log := svc.ChangeLog()
		require.Len(t, log, 3)
		assert.Equal(t, core.ActionDelete, log[0].Action)
		assert.Equal(t, "Deleted Cement entry for ₹150", log[0].Details)
	})

	t.Run("Missing Entry", func(t *testing.T) {
		_, err := svc.DeleteEntry("nope")
		assert.True(t, errors.Is(err, core.ErrEntryNotFound))
	})
}

func TestService_RejectsInvalidBeforeStoring(t *testing.T) {
	svc := newTestService()

	bad := core.Entry{ID: "x", Date: core.NewDate(2025, 1, 1), Category: "Sand"}
	_, err := svc.AddEntry(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidEntry))

	assert.Empty(t, svc.Entries())
	assert.Empty(t, svc.ChangeLog(), "a rejected edit must not be logged")
}

func TestService_DuplicateID(t *testing.T) {
	svc := newTestService()
	e := mustEntry(t, "dup", "2025-01-01", "Cement", "100", "")
	_, err := svc.AddEntry(e)
	require.NoError(t, err)

	_, err = svc.AddEntry(e)
	assert.True(t, errors.Is(err, core.ErrDuplicateEntry))
	assert.Len(t, svc.Entries(), 1)
}

func TestLedger_SnapshotIsDetached(t *testing.T) {
	svc := newTestService()
	_, err := svc.AddEntry(mustEntry(t, "a", "2025-01-01", "Cement", "100", ""))
	require.NoError(t, err)

	snap := svc.Ledger().Snapshot()
	snap.Entries[0].Category = "Changed"
	snap.ChangeLog[0].Changes.New.Category = "Changed"

	fresh := svc.Ledger().Snapshot()
	assert.Equal(t, "Cement", fresh.Entries[0].Category)
	assert.Equal(t, "Cement", fresh.ChangeLog[0].Changes.New.Category)
}

func TestDataset_GroupsAndCategories(t *testing.T) {
	d, err := core.NewDataset(
		mustEntry(t, "1", "2025-01-01", "Steel", "10", "First"),
		mustEntry(t, "2", "2025-01-02", "Cement", "10", "Ground"),
		mustEntry(t, "3", "2025-01-03", "Cement", "10", ""),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cement", "Steel"}, d.Categories())
	assert.Equal(t, []string{"First", "Ground"}, d.Groups())
}

func TestSnapshot_Digest(t *testing.T) {
	svc := newTestService()
	empty := svc.Ledger().Snapshot()
	assert.True(t, empty.Empty())
	assert.Equal(t, empty.Digest(), core.Snapshot{}.Digest(), "nil and empty slices digest alike")

	e, err := core.NewEntry("2025-03-01", "Cement", "100", "", "Ground")
	require.NoError(t, err)
	_, err = svc.AddEntry(e)
	require.NoError(t, err)

	snap := svc.Ledger().Snapshot()
	assert.False(t, snap.Empty())
	assert.NotEqual(t, empty.Digest(), snap.Digest())
	assert.Equal(t, snap.Digest(), svc.Ledger().Snapshot().Digest())
}
