package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	usersFileName  = "users.json"
	sessionTimeout = 1 * time.Hour
)

type User struct {
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"password_hash"`
}

type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// UserManager is the identity provider: register/login/logout/validate
// backed by bcrypt hashes and expiring session tokens.
type UserManager struct {
	dataDir  string
	users    map[string]*User
	sessions map[string]*Session // token -> Session
	mu       sync.RWMutex
}

func NewUserManager(dataDir string) *UserManager {
	return &UserManager{
		dataDir:  dataDir,
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
	}
}

func (um *UserManager) filePath() string {
	return filepath.Join(um.dataDir, usersFileName)
}

func (um *UserManager) Register(username, email, password string) error {
	um.mu.Lock()
	defer um.mu.Unlock()

	// Disallow reserved usernames "system" and "admin" (case-insensitive)
	trimmed := strings.TrimSpace(username)
	if strings.EqualFold(trimmed, "system") || strings.EqualFold(trimmed, "admin") {
		return errors.New("reserved username")
	}

	if _, exists := um.users[username]; exists {
		return errors.New("user already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	um.users[username] = &User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hashedPassword),
	}
	um.saveUsersLocked()
	return nil
}

func (um *UserManager) Login(username, password string) (string, error) {
	um.mu.RLock()
	user, exists := um.users[username]
	um.mu.RUnlock()

	if !exists {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token, err := generateToken()
	if err != nil {
		return "", errors.New("failed to generate session token")
	}

	session := &Session{
		Token:     token,
		Username:  username,
		ExpiresAt: time.Now().Add(sessionTimeout),
	}

	um.mu.Lock()
	um.sessions[token] = session
	um.mu.Unlock()

	go um.cleanupExpiredSessions()

	return token, nil
}

func (um *UserManager) Logout(token string) {
	um.mu.Lock()
	delete(um.sessions, token)
	um.mu.Unlock()
}

// ValidateToken resolves a session token to its username, rejecting
// unknown and expired tokens.
func (um *UserManager) ValidateToken(token string) (string, error) {
	um.mu.RLock()
	session, exists := um.sessions[token]
	um.mu.RUnlock()

	if !exists {
		return "", errors.New("invalid token")
	}
	if time.Now().After(session.ExpiresAt) {
		um.Logout(token)
		return "", errors.New("session expired")
	}
	return session.Username, nil
}

// GetUser returns the stored profile for a username.
func (um *UserManager) GetUser(username string) (*User, bool) {
	um.mu.RLock()
	defer um.mu.RUnlock()
	u, ok := um.users[username]
	return u, ok
}

// generateToken creates a secure random token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (um *UserManager) cleanupExpiredSessions() {
	um.mu.Lock()
	defer um.mu.Unlock()
	now := time.Now()
	for token, session := range um.sessions {
		if now.After(session.ExpiresAt) {
			delete(um.sessions, token)
		}
	}
}

func (um *UserManager) saveUsersLocked() {
	if err := os.MkdirAll(um.dataDir, 0755); err != nil {
		log.Printf("users: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(um.filePath())
	if err != nil {
		log.Printf("users: create: %v", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(um.users); err != nil {
		log.Printf("users: encode: %v", err)
	}
}

func (um *UserManager) Load() {
	um.mu.Lock()
	defer um.mu.Unlock()

	f, err := os.Open(um.filePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("users: open: %v", err)
		}
		return
	}
	defer f.Close()

	var users map[string]*User
	if err := json.NewDecoder(f).Decode(&users); err != nil {
		log.Printf("users: decode: %v", err)
		return
	}
	um.users = users
	log.Printf("Loaded %d users from disk", len(users))
}
