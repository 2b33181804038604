package cache

import (
	"sync"
	"time"
)

// MemoryStore is a map-backed Store. It backs tests and dry runs; the
// daemon uses DiskStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*Entry
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Fingerprint]*Entry)}
}

func (m *MemoryStore) Get(fp Fingerprint) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := m.entries[fp]
	if !ok {
		return Entry{}, false, nil
	}
	e.Hits++
	return *e, true, nil
}

func (m *MemoryStore) Put(fp Fingerprint, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.entries[fp]; ok {
		// First writer wins.
		return nil
	}
	m.entries[fp] = &Entry{
		Fingerprint: fp,
		Result:      result,
		CreatedAt:   time.Now(),
	}
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
