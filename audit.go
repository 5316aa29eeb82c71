package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const auditFileName = "audit.json"

type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"` // e.g. "UPLOAD", "SAVE_CHANGES"
	Details   string    `json:"details"`
}

// AuditManager keeps an append-only log of table-level actions persisted
// to DATA/audit.json.
type AuditManager struct {
	mu      sync.RWMutex
	dataDir string
	entries []AuditEntry
}

func NewAuditManager(dataDir string) *AuditManager {
	return &AuditManager{dataDir: dataDir}
}

func (am *AuditManager) filePath() string {
	return filepath.Join(am.dataDir, auditFileName)
}

func (am *AuditManager) Load() {
	am.mu.Lock()
	defer am.mu.Unlock()
	f, err := os.Open(am.filePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("audit: open: %v", err)
		}
		return
	}
	defer f.Close()

	var entries []AuditEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		log.Printf("audit: decode: %v", err)
		return
	}
	am.entries = entries
}

func (am *AuditManager) Save() {
	am.mu.RLock()
	defer am.mu.RUnlock()
	if err := os.MkdirAll(am.dataDir, 0755); err != nil {
		log.Printf("audit: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(am.filePath())
	if err != nil {
		log.Printf("audit: create: %v", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(am.entries); err != nil {
		log.Printf("audit: encode: %v", err)
	}
}

func (am *AuditManager) Append(user, action, details string) {
	entry := AuditEntry{
		Timestamp: time.Now(),
		User:      user,
		Action:    action,
		Details:   details,
	}
	am.mu.Lock()
	am.entries = append(am.entries, entry)
	am.mu.Unlock()
	am.Save()
}

func (am *AuditManager) List() []AuditEntry {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return append([]AuditEntry{}, am.entries...)
}
