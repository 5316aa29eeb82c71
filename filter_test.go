package main

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() Grid {
	return Grid{
		{TextValue("Region"), TextValue("Product"), TextValue("Amount")},
		{TextValue("North"), TextValue("Widget"), NumberValue(100)},
		{TextValue("South"), TextValue("Widget"), NumberValue(200)},
		{TextValue("North"), TextValue("Gadget"), NumberValue(150.5)},
		{TextValue("East"), TextValue("Sprocket"), NumberValue(50)},
	}
}

func newTestStore(t *testing.T) *TableStore {
	t.Helper()
	s := NewTableStore(t.TempDir())
	s.SetGrid(testGrid(), "fixture.xlsx")
	return s
}

func TestSearchFiltersCaseInsensitively(t *testing.T) {
	s := newTestStore(t)

	s.SetSearchTerm("widget")
	assert.Equal(t, 2, len(s.VisibleDataRows()))

	s.SetSearchTerm("GADGET")
	require.Equal(t, 1, len(s.VisibleDataRows()))
	assert.Equal(t, "North", s.VisibleDataRows()[0][0].String())

	// search also matches stringified numbers
	s.SetSearchTerm("150.5")
	assert.Equal(t, 1, len(s.VisibleDataRows()))

	s.SetSearchTerm("")
	assert.Equal(t, 4, len(s.VisibleDataRows()))
}

func TestColumnFilterToggle(t *testing.T) {
	s := newTestStore(t)

	s.ToggleColumnFilter(0, "North")
	assert.Equal(t, 2, len(s.VisibleDataRows()))

	s.ToggleColumnFilter(0, "South")
	assert.Equal(t, 3, len(s.VisibleDataRows()))

	// toggling off again restores the previous view
	s.ToggleColumnFilter(0, "South")
	assert.Equal(t, 2, len(s.VisibleDataRows()))

	// removing the last value leaves an empty set: everything visible
	s.ToggleColumnFilter(0, "North")
	assert.Equal(t, 4, len(s.VisibleDataRows()))
	filters := s.ColumnFilters()
	require.Contains(t, filters, 0)
	assert.Empty(t, filters[0])
}

func TestClearColumnFilter(t *testing.T) {
	s := newTestStore(t)
	s.ToggleColumnFilter(1, "Widget")
	require.Equal(t, 2, len(s.VisibleDataRows()))

	s.ClearColumnFilter(1)
	assert.Equal(t, 4, len(s.VisibleDataRows()))
	assert.NotContains(t, s.ColumnFilters(), 1)
}

func TestSearchAndFiltersCombine(t *testing.T) {
	s := newTestStore(t)
	s.ToggleColumnFilter(1, "Widget")
	s.SetSearchTerm("north")
	rows := s.VisibleDataRows()
	require.Equal(t, 1, len(rows))
	assert.Equal(t, "North", rows[0][0].String())
	assert.Equal(t, "Widget", rows[0][1].String())
}

func TestVisibleRowsStableAcrossCalls(t *testing.T) {
	s := newTestStore(t)
	s.SetSearchTerm("widget")

	first := s.VisibleDataRows()
	second := s.VisibleDataRows()
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer(),
		"unchanged state should return the identical slice")

	s.SetSearchTerm("gadget")
	third := s.VisibleDataRows()
	assert.NotEqual(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(third).Pointer())
}

func TestFilteredRowsKeepsHeader(t *testing.T) {
	s := newTestStore(t)
	s.SetSearchTerm("sprocket")
	rows := s.FilteredRows()
	require.Equal(t, 2, len(rows))
	assert.Equal(t, "Region", rows[0][0].String())
	assert.Equal(t, "East", rows[1][0].String())
}

func TestUniqueValuesByColumn(t *testing.T) {
	s := newTestStore(t)
	unique := s.UniqueValuesByColumn()
	assert.Equal(t, []string{"East", "North", "South"}, unique[0])
	assert.Equal(t, []string{"Gadget", "Sprocket", "Widget"}, unique[1])

	// cached until the grid changes
	again := s.UniqueValuesByColumn()
	assert.Equal(t, reflect.ValueOf(unique).Pointer(), reflect.ValueOf(again).Pointer())
}

func TestFilterOnMissingColumnHidesShortRows(t *testing.T) {
	s := NewTableStore(t.TempDir())
	s.SetGrid(Grid{
		{TextValue("A"), TextValue("B")},
		{TextValue("x")},
		{TextValue("y"), TextValue("z")},
	}, "short.csv")

	s.ToggleColumnFilter(1, "z")
	rows := s.VisibleDataRows()
	require.Equal(t, 1, len(rows))
	assert.Equal(t, "y", rows[0][0].String())

	// an accepted empty string matches the short row's missing cell
	s.ToggleColumnFilter(1, "")
	assert.Equal(t, 2, len(s.VisibleDataRows()))
}
