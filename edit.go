package main

import "time"

// Edit engine: all mutators are gated on edit mode and are no-ops
// outside it. Entering edit mode snapshots the grid; commit persists and
// refreshes the snapshot; cancel restores it. Outside edit mode the grid
// is never mutated here.

// EnterEditMode captures the rollback snapshot and enables editing. It
// never mutates data; re-entering refreshes the snapshot.
func (s *TableStore) EnterEditMode() {
	s.mu.Lock()
	s.originalRows = s.rows.Clone()
	s.isEditMode = true
	s.mu.Unlock()
}

// UpdateCell replaces a single cell and marks the session dirty. Row 0 is
// the header; callers are expected to pass rowIndex >= 1.
func (s *TableStore) UpdateCell(rowIndex, colIndex int, value Value) {
	s.mu.Lock()
	if !s.isEditMode || rowIndex < 0 || rowIndex >= len(s.rows) || colIndex < 0 {
		s.mu.Unlock()
		return
	}
	row := append([]Value(nil), s.rows[rowIndex]...)
	for len(row) <= colIndex {
		row = append(row, Value{})
	}
	row[colIndex] = value
	s.rows[rowIndex] = row
	s.hasUnsavedChanges = true
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	s.notify(rec)
}

// AddRow inserts a row of empty strings, header-width wide, after
// afterIndex (or at the end when afterIndex is negative).
func (s *TableStore) AddRow(afterIndex int) {
	s.mu.Lock()
	if !s.isEditMode {
		s.mu.Unlock()
		return
	}
	insert := len(s.rows)
	if afterIndex >= 0 && afterIndex+1 < insert {
		insert = afterIndex + 1
	}
	newRow := make([]Value, len(s.rows.Headers()))
	rows := make(Grid, 0, len(s.rows)+1)
	rows = append(rows, s.rows[:insert]...)
	rows = append(rows, newRow)
	rows = append(rows, s.rows[insert:]...)
	s.rows = rows
	s.hasUnsavedChanges = true
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	s.notify(rec)
}

// DeleteRow removes a data row. Row 0 (the header) is protected.
func (s *TableStore) DeleteRow(rowIndex int) {
	s.mu.Lock()
	if !s.isEditMode || rowIndex <= 0 || rowIndex >= len(s.rows) {
		s.mu.Unlock()
		return
	}
	rows := make(Grid, 0, len(s.rows)-1)
	rows = append(rows, s.rows[:rowIndex]...)
	rows = append(rows, s.rows[rowIndex+1:]...)
	s.rows = rows
	s.hasUnsavedChanges = true
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	s.notify(rec)
}

// SaveChanges commits the working grid: persists the durable entry,
// clears the dirty flag and refreshes the rollback snapshot. No-op while
// clean.
func (s *TableStore) SaveChanges() {
	s.mu.Lock()
	if !s.hasUnsavedChanges {
		s.mu.Unlock()
		return
	}
	s.hasUnsavedChanges = false
	s.originalRows = s.rows.Clone()
	s.updatedAt = time.Now().UnixMilli()
	rec := s.recordLocked()
	s.mu.Unlock()

	s.persist(rec)
	s.notify(rec)
}

// CancelChanges exits edit mode; when dirty it first restores the grid
// from the snapshot taken on entry.
func (s *TableStore) CancelChanges() {
	s.mu.Lock()
	if !s.hasUnsavedChanges {
		s.isEditMode = false
		s.mu.Unlock()
		return
	}
	s.rows = s.originalRows.Clone()
	s.hasUnsavedChanges = false
	s.isEditMode = false
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	s.notify(rec)
}
