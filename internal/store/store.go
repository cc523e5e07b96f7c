// Package store persists client state between sessions. Durable keys
// live in an embedded sqlite database under the user's state path;
// transient keys live in memory with a TTL and die with the process.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Durable keys.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeySelectedList = "selectedTaskList"
	KeyDarkMode     = "darkMode"
)

// Transient keys.
const (
	KeySavedSession   = "savedSession"
	KeyAutoSelectList = "autoSelectTaskListId"
)

// SessionHintTTL bounds how long a saved session survives; a login
// after this window starts fresh.
const SessionHintTTL = 30 * time.Minute

var ErrNotFound = errors.New("key not found")

// Setting is one durable key-value row.
type Setting struct {
	Key       string    `gorm:"primarykey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time
}

type transientEntry struct {
	value     string
	expiresAt time.Time
}

// Store is the process-wide client state store. Only the HTTP client
// and session controller mutate tokens; other components read through
// them.
type Store struct {
	db *gorm.DB

	mu        sync.Mutex
	transient map[string]transientEntry
	now       func() time.Time
}

// Open creates or opens the state database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &Store{
		db:        db,
		transient: make(map[string]transientEntry),
		now:       time.Now,
	}, nil
}

// OpenMemory opens an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Teardown closes the underlying database handle.
func (s *Store) Teardown() {
	sqlDB, err := s.db.DB()
	if err != nil {
		log.Printf("store teardown: %v", err)
		return
	}
	sqlDB.Close()
}

// Get returns a durable value, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var setting Setting
	if err := s.db.First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set upserts a durable value.
func (s *Store) Set(key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: s.now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes a durable value. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete(&Setting{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Tokens returns the stored access and refresh tokens. Both are empty
// when the user is logged out.
func (s *Store) Tokens() (access, refresh string) {
	access, _ = s.Get(KeyToken)
	refresh, _ = s.Get(KeyRefreshToken)
	return access, refresh
}

// SetTokens writes the token pair. The pair either both exists or is
// both cleared; setting one without the other is forbidden.
func (s *Store) SetTokens(access, refresh string) error {
	if (access == "") != (refresh == "") {
		return fmt.Errorf("token pair must be set or cleared together")
	}
	if access == "" {
		return s.ClearTokens()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range map[string]string{KeyToken: access, KeyRefreshToken: refresh} {
			setting := Setting{Key: key, Value: value, UpdatedAt: s.now()}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
}

// ClearTokens removes both tokens atomically.
func (s *Store) ClearTokens() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Setting{}, "key IN ?", []string{KeyToken, KeyRefreshToken}).Error; err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
		return nil
	})
}

// SetTransient stores an in-memory value that expires after ttl.
func (s *Store) SetTransient(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transient[key] = transientEntry{value: value, expiresAt: s.now().Add(ttl)}
}

// GetTransient returns a transient value if it has not expired.
func (s *Store) GetTransient(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.transient[key]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.transient, key)
		return "", false
	}
	return entry.value, true
}

// DeleteTransient removes a transient value.
func (s *Store) DeleteTransient(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transient, key)
}
