package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const notificationsFileName = "notifications.json"

// Notification is the toast payload surfaced to users: a title, a short
// description and a kind of "success" or "error".
type Notification struct {
	Timestamp   time.Time `json:"timestamp"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
}

// Notifier is the toast/notification sink the pipeline reports into.
type Notifier interface {
	Success(title, description string)
	Error(title, description string)
}

// NotificationManager persists the notification feed and logs each entry.
type NotificationManager struct {
	mu      sync.RWMutex
	dataDir string
	feed    []Notification
}

func NewNotificationManager(dataDir string) *NotificationManager {
	return &NotificationManager{dataDir: dataDir}
}

func (nm *NotificationManager) filePath() string {
	return filepath.Join(nm.dataDir, notificationsFileName)
}

func (nm *NotificationManager) Success(title, description string) {
	nm.append(Notification{Timestamp: time.Now(), Title: title, Description: description, Kind: "success"})
}

func (nm *NotificationManager) Error(title, description string) {
	nm.append(Notification{Timestamp: time.Now(), Title: title, Description: description, Kind: "error"})
}

func (nm *NotificationManager) append(n Notification) {
	log.Printf("notify [%s]: %s: %s", n.Kind, n.Title, n.Description)
	nm.mu.Lock()
	nm.feed = append(nm.feed, n)
	nm.mu.Unlock()
	go nm.Save()
}

func (nm *NotificationManager) History() []Notification {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	out := make([]Notification, len(nm.feed))
	copy(out, nm.feed)
	return out
}

func (nm *NotificationManager) Load() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	f, err := os.Open(nm.filePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("notify: open: %v", err)
		}
		return
	}
	defer f.Close()

	var feed []Notification
	if err := json.NewDecoder(f).Decode(&feed); err != nil {
		log.Printf("notify: decode: %v", err)
		return
	}
	nm.feed = feed
}

func (nm *NotificationManager) Save() {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if err := os.MkdirAll(nm.dataDir, 0755); err != nil {
		log.Printf("notify: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(nm.filePath())
	if err != nil {
		log.Printf("notify: create: %v", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nm.feed); err != nil {
		log.Printf("notify: encode: %v", err)
	}
}
