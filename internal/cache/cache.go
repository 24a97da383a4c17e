// package cache implements the process-wide response cache that shields the
// upstream catalog API from redundant calls.
//
// Entries carry a per-entry expiry and are evicted lazily: an expired entry is
// removed only when its key is read again. There is no capacity bound and no
// background sweep, so entries for keys that are never re-read persist until
// process exit.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is a mutex-guarded key→value store with per-entry TTL.
//
// Safe for use across concurrently handled requests.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key if present and fresh.
//
// An expired entry is deleted and reported as absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: another request may have replaced the
		// entry since the read lock was dropped.
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set unconditionally upserts key with the given value and TTL.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
