package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const tableStorageFile = "table.json"

// TableRecord is both the durable-store entry and the change-notification
// payload broadcast on every grid replacement, commit or clear.
type TableRecord struct {
	Rows      Grid   `json:"rows"`
	FileName  string `json:"fileName"`
	UpdatedAt int64  `json:"updatedAt"`
}

// TableBroadcaster fans a change payload out to other contexts (the
// WebSocket hub in this server). Last writer wins; there is no merge.
type TableBroadcaster interface {
	BroadcastTable(rec TableRecord)
}

// TableStore is the hub of the pipeline: it owns the grid, file identity,
// filter/search state and the edit session, persists itself under one
// fixed key, and republishes every change to interested listeners.
type TableStore struct {
	mu      sync.RWMutex
	dataDir string

	rows      Grid
	fileName  string
	updatedAt int64

	searchTerm    string
	columnFilters map[int]map[string]bool

	isEditMode        bool
	hasUnsavedChanges bool
	originalRows      Grid

	isLoading bool

	// rev counts visible-state changes; the caches below are keyed on it
	// so unchanged state keeps returning the identical derived slices.
	rev          uint64
	visibleRev   uint64
	visibleRows  Grid
	visibleValid bool
	uniqueRev    uint64
	uniqueVals   map[int][]string
	uniqueValid  bool

	broadcaster TableBroadcaster
	subscribers map[chan TableRecord]bool
}

func NewTableStore(dataDir string) *TableStore {
	return &TableStore{
		dataDir:       dataDir,
		rows:          Grid{},
		columnFilters: make(map[int]map[string]bool),
		subscribers:   make(map[chan TableRecord]bool),
	}
}

func (s *TableStore) SetBroadcaster(b TableBroadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// Subscribe returns a channel that receives every change payload emitted
// by this store (same-context listeners, e.g. chart views). Slow
// listeners drop payloads rather than block mutators.
func (s *TableStore) Subscribe() chan TableRecord {
	ch := make(chan TableRecord, 8)
	s.mu.Lock()
	s.subscribers[ch] = true
	s.mu.Unlock()
	return ch
}

func (s *TableStore) Unsubscribe(ch chan TableRecord) {
	s.mu.Lock()
	if s.subscribers[ch] {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *TableStore) notify(rec TableRecord) {
	s.mu.RLock()
	b := s.broadcaster
	subs := make([]chan TableRecord, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.RUnlock()

	if b != nil {
		b.BroadcastTable(rec)
	}
	for _, ch := range subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (s *TableStore) tableFilePath() string {
	return filepath.Join(s.dataDir, tableStorageFile)
}

// Load hydrates the store from the durable entry, if one exists. Storage
// errors are logged and swallowed: the store degrades to in-memory-only.
func (s *TableStore) Load() {
	f, err := os.Open(s.tableFilePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("table store: open: %v", err)
		}
		return
	}
	defer f.Close()

	var rec TableRecord
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		log.Printf("table store: decode: %v", err)
		return
	}

	s.mu.Lock()
	s.rows = rec.Rows
	if s.rows == nil {
		s.rows = Grid{}
	}
	s.fileName = rec.FileName
	s.updatedAt = rec.UpdatedAt
	s.rev++
	s.mu.Unlock()
	log.Printf("table store: restored %d rows from %q", len(rec.Rows), rec.FileName)
}

// persist writes the durable entry. Failures are logged, never surfaced;
// in-memory state stays authoritative.
func (s *TableStore) persist(rec TableRecord) {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		log.Printf("table store: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(s.tableFilePath())
	if err != nil {
		log.Printf("table store: create: %v", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		log.Printf("table store: encode: %v", err)
	}
}

func (s *TableStore) recordLocked() TableRecord {
	return TableRecord{Rows: s.rows.Clone(), FileName: s.fileName, UpdatedAt: s.updatedAt}
}

// SetGrid replaces the grid wholesale after a successful load, persists
// the durable entry and broadcasts the change.
func (s *TableStore) SetGrid(rows Grid, fileName string) {
	s.mu.Lock()
	s.rows = rows
	s.fileName = fileName
	s.updatedAt = time.Now().UnixMilli()
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	s.persist(rec)
	s.notify(rec)
}

// Clear resets grid, filename, search, filters and edit state together,
// deletes the durable entry and broadcasts the deletion.
func (s *TableStore) Clear() {
	s.mu.Lock()
	s.rows = Grid{}
	s.fileName = ""
	s.searchTerm = ""
	s.columnFilters = make(map[int]map[string]bool)
	s.isEditMode = false
	s.hasUnsavedChanges = false
	s.originalRows = nil
	s.updatedAt = time.Now().UnixMilli()
	s.rev++
	rec := s.recordLocked()
	s.mu.Unlock()

	if err := os.Remove(s.tableFilePath()); err != nil && !os.IsNotExist(err) {
		log.Printf("table store: remove: %v", err)
	}
	s.notify(rec)
}

// BeginLoad flips the loading flag; a second upload while one is in
// flight is rejected by returning false.
func (s *TableStore) BeginLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isLoading {
		return false
	}
	s.isLoading = true
	return true
}

func (s *TableStore) EndLoad() {
	s.mu.Lock()
	s.isLoading = false
	s.mu.Unlock()
}

func (s *TableStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

func (s *TableStore) Rows() Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows
}

func (s *TableStore) FileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileName
}

func (s *TableStore) UpdatedAt() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *TableStore) Headers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows.Headers()
}

func (s *TableStore) IsEditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEditMode
}

func (s *TableStore) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasUnsavedChanges
}

func (s *TableStore) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

// Record returns the current change payload (used for INIT snapshots).
func (s *TableStore) Record() TableRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordLocked()
}
