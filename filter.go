package main

import (
	"sort"
	"strings"
)

// SetSearchTerm replaces the free-text search term.
func (s *TableStore) SetSearchTerm(term string) {
	s.mu.Lock()
	if s.searchTerm != term {
		s.searchTerm = term
		s.rev++
	}
	s.mu.Unlock()
}

// ToggleColumnFilter adds value to the column's accepted set if absent,
// else removes it. Removing the last value leaves an empty set, which is
// equivalent to no filter; only ClearColumnFilter deletes the key.
func (s *TableStore) ToggleColumnFilter(column int, value string) {
	s.mu.Lock()
	set := s.columnFilters[column]
	if set == nil {
		set = make(map[string]bool)
		s.columnFilters[column] = set
	}
	if set[value] {
		delete(set, value)
	} else {
		set[value] = true
	}
	s.rev++
	s.mu.Unlock()
}

// ClearColumnFilter removes the column's filter entirely.
func (s *TableStore) ClearColumnFilter(column int) {
	s.mu.Lock()
	if _, ok := s.columnFilters[column]; ok {
		delete(s.columnFilters, column)
		s.rev++
	}
	s.mu.Unlock()
}

// ColumnFilters returns the active filters as sorted value lists, keyed
// by column index. Empty sets are included (they mean "no restriction").
func (s *TableStore) ColumnFilters() map[int][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]string, len(s.columnFilters))
	for col, set := range s.columnFilters {
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		out[col] = vals
	}
	return out
}

// VisibleDataRows derives the filtered data rows (header excluded) from
// the grid, search term and column filters. The result is cached against
// the store revision, so repeated calls with unchanged state return the
// identical slice.
func (s *TableStore) VisibleDataRows() Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visibleValid && s.visibleRev == s.rev {
		return s.visibleRows
	}
	s.visibleRows = computeVisibleRows(s.rows, s.searchTerm, s.columnFilters)
	s.visibleRev = s.rev
	s.visibleValid = true
	return s.visibleRows
}

// FilteredRows is the visible grid: header (when present) at position 0
// followed by the visible data rows.
func (s *TableStore) FilteredRows() Grid {
	data := s.VisibleDataRows()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rows) == 0 || len(s.rows[0]) == 0 {
		return data
	}
	out := make(Grid, 0, len(data)+1)
	out = append(out, s.rows[0])
	return append(out, data...)
}

// computeVisibleRows is the pure filter core. A data row is visible iff
// the search term is empty or some cell contains it (case-insensitive),
// and for every column with a non-empty accepted set the row's
// stringified value at that column is a member. Empty sets and absent
// keys are treated identically.
func computeVisibleRows(grid Grid, searchTerm string, filters map[int]map[string]bool) Grid {
	dataRows := grid.DataRows()
	lowered := strings.ToLower(searchTerm)

	out := Grid{}
	for _, row := range dataRows {
		if !rowMatchesSearch(row, lowered) {
			continue
		}
		if !rowMatchesFilters(row, filters) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func rowMatchesSearch(row []Value, lowered string) bool {
	if lowered == "" {
		return true
	}
	for _, cell := range row {
		if strings.Contains(strings.ToLower(cell.String()), lowered) {
			return true
		}
	}
	return false
}

func rowMatchesFilters(row []Value, filters map[int]map[string]bool) bool {
	for col, set := range filters {
		if len(set) == 0 {
			continue
		}
		var cell Value
		if col >= 0 && col < len(row) {
			cell = row[col]
		}
		if !set[cell.String()] {
			return false
		}
	}
	return true
}

// UniqueValuesByColumn lists the distinct stringified values of every
// column across the data rows, sorted, for the column-filter pickers.
// Cached against the store revision like VisibleDataRows.
func (s *TableStore) UniqueValuesByColumn() map[int][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uniqueValid && s.uniqueRev == s.rev {
		return s.uniqueVals
	}

	dataRows := s.rows.DataRows()
	width := len(s.rows.Headers())
	for _, r := range dataRows {
		if len(r) > width {
			width = len(r)
		}
	}

	out := make(map[int][]string, width)
	for c := 0; c < width; c++ {
		seen := make(map[string]bool)
		for _, r := range dataRows {
			var v Value
			if c < len(r) {
				v = r[c]
			}
			seen[v.String()] = true
		}
		vals := make([]string, 0, len(seen))
		for v := range seen {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		out[c] = vals
	}

	s.uniqueVals = out
	s.uniqueRev = s.rev
	s.uniqueValid = true
	return out
}
