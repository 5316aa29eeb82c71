package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	when := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	s := NewTableStore(dir)
	s.SetGrid(Grid{
		{TextValue("Name"), TextValue("Joined")},
		{TextValue("Alice"), TimeValue(when)},
		{NumberValue(42), BoolValue(true)},
	}, "members.xlsx")

	fresh := NewTableStore(dir)
	fresh.Load()

	assert.Equal(t, "members.xlsx", fresh.FileName())
	assert.Equal(t, s.UpdatedAt(), fresh.UpdatedAt())
	require.Equal(t, 3, len(fresh.Rows()))

	// the date survives the round trip as a date, not a string
	got := fresh.Rows().CellAt(1, 1)
	require.Equal(t, CellTime, got.Kind)
	assert.True(t, got.Time.Equal(when))
	assert.Equal(t, NumberValue(42), fresh.Rows().CellAt(2, 0))
	assert.Equal(t, BoolValue(true), fresh.Rows().CellAt(2, 1))
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewTableStore(t.TempDir())
	s.Load()
	assert.Empty(t, s.Rows())
	assert.Equal(t, "", s.FileName())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tableStorageFile), []byte("{broken"), 0644))

	s := NewTableStore(dir)
	s.Load()
	assert.Empty(t, s.Rows())
}

func TestStoreClearRemovesDurableEntry(t *testing.T) {
	dir := t.TempDir()
	s := NewTableStore(dir)
	s.SetGrid(testGrid(), "fixture.xlsx")
	s.SetSearchTerm("widget")
	s.ToggleColumnFilter(0, "North")
	s.EnterEditMode()

	s.Clear()

	assert.Empty(t, s.Rows())
	assert.Equal(t, "", s.FileName())
	assert.Equal(t, "", s.SearchTerm())
	assert.Empty(t, s.ColumnFilters())
	assert.False(t, s.IsEditMode())

	_, err := os.Stat(filepath.Join(dir, tableStorageFile))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreSubscribersReceiveChanges(t *testing.T) {
	s := NewTableStore(t.TempDir())
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.SetGrid(testGrid(), "fixture.xlsx")

	select {
	case rec := <-ch:
		assert.Equal(t, "fixture.xlsx", rec.FileName)
		assert.Equal(t, 5, len(rec.Rows))
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}

func TestStoreNotificationPayloadIsDetached(t *testing.T) {
	s := NewTableStore(t.TempDir())
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.SetGrid(testGrid(), "fixture.xlsx")
	rec := <-ch

	// mutating the snapshot must not leak into the store
	rec.Rows[1][0] = TextValue("tampered")
	assert.Equal(t, "North", s.Rows().CellAt(1, 0).String())
}

func TestStoreBroadcasterReceivesCommit(t *testing.T) {
	s := NewTableStore(t.TempDir())
	var got []TableRecord
	s.SetBroadcaster(broadcasterFunc(func(rec TableRecord) {
		got = append(got, rec)
	}))

	s.SetGrid(testGrid(), "fixture.xlsx")
	s.EnterEditMode()
	s.UpdateCell(1, 0, TextValue("West"))
	s.SaveChanges()

	require.Equal(t, 3, len(got))
	assert.Equal(t, "West", got[2].Rows[1][0].String())
}

type broadcasterFunc func(TableRecord)

func (f broadcasterFunc) BroadcastTable(rec TableRecord) { f(rec) }

func TestBeginLoadGuard(t *testing.T) {
	s := NewTableStore(t.TempDir())
	require.True(t, s.BeginLoad())
	assert.True(t, s.IsLoading())
	assert.False(t, s.BeginLoad(), "concurrent load must be rejected")

	s.EndLoad()
	assert.False(t, s.IsLoading())
	assert.True(t, s.BeginLoad())
}
