package fmdata

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
)

// SessionStore caches session tokens by connection key.
type SessionStore interface {
	// Get returns the token stored under key, or ErrSessionNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores token under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// SessionKey returns the store key for a connection name.
func SessionKey(connection string) string {
	return constants.SessionCacheKeyPrefix + connection
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemorySessionStore keeps tokens in process memory.
type MemorySessionStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var (
	defaultSessionStore     *MemorySessionStore
	defaultSessionStoreOnce sync.Once
)

// DefaultSessionStore returns the process-wide store shared by connections
// that do not configure one.
func DefaultSessionStore() *MemorySessionStore {
	defaultSessionStoreOnce.Do(func() {
		defaultSessionStore = NewMemorySessionStore()
	})

	return defaultSessionStore
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrSessionNotFound
	}

	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()

		return "", ErrSessionNotFound
	}

	return entry.token, nil
}

// Set implements SessionStore.
func (s *MemorySessionStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	entry := memoryEntry{token: token}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// NoOpSessionStore never stores anything.
type NoOpSessionStore struct{}

// NewNoOpSessionStore creates a store that caches nothing.
func NewNoOpSessionStore() *NoOpSessionStore {
	return &NoOpSessionStore{}
}

// Get always reports a miss.
func (s *NoOpSessionStore) Get(ctx context.Context, key string) (string, error) {
	return "", ErrSessionNotFound
}

// Set does nothing.
func (s *NoOpSessionStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return nil
}

// Delete does nothing.
func (s *NoOpSessionStore) Delete(ctx context.Context, key string) error {
	return nil
}
