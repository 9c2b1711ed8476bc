package credential

import "sync"

// MemoryStore keeps the credential in memory only, making it useful for
// tests and one-shot sessions. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a MemoryStore already holding token.
func NewMemoryStoreWith(token string) *MemoryStore {
	return &MemoryStore{token: token, set: true}
}

func (m *MemoryStore) Get() (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.set, nil
}

func (m *MemoryStore) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

func (m *MemoryStore) Close() error { return nil }
