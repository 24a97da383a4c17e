package auth

import "sync"

// MemoryStore is an in-process SessionStore for one-shot runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session

	// Legacy unbundled pair, adopted once by the manager when set.
	LegacyAccess  string
	LegacyRefresh string
}

func (m *MemoryStore) Read() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemoryStore) Write(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.session = &copied
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *MemoryStore) ReadLegacy() (string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LegacyAccess == "" {
		return "", "", false
	}
	return m.LegacyAccess, m.LegacyRefresh, true
}

func (m *MemoryStore) ClearLegacy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LegacyAccess, m.LegacyRefresh = "", ""
}
