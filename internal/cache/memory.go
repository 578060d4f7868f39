package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps values in process memory. It backs tests and
// single-process embedders.
type MemoryStore struct {
	entries map[string][]byte
	mutex   sync.RWMutex
	// Statistics tracking (atomic for thread safety)
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// StoreStats is a snapshot of the MemoryStore counters.
type StoreStats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Entries int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func memoryKey(pool, key string) string {
	return pool + "\x00" + key
}

// Get retrieves a value from the store
func (m *MemoryStore) Get(_ context.Context, pool, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	value, ok := m.entries[memoryKey(pool, key)]
	m.mutex.RUnlock()

	if !ok {
		atomic.AddInt64(&m.misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&m.hits, 1)

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores a value
func (m *MemoryStore) Set(_ context.Context, pool, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mutex.Lock()
	m.entries[memoryKey(pool, key)] = stored
	m.mutex.Unlock()

	atomic.AddInt64(&m.sets, 1)
	return nil
}

// Delete removes a value
func (m *MemoryStore) Delete(_ context.Context, pool, key string) error {
	m.mutex.Lock()
	delete(m.entries, memoryKey(pool, key))
	m.mutex.Unlock()

	atomic.AddInt64(&m.deletes, 1)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Stats returns the store counters.
func (m *MemoryStore) Stats() StoreStats {
	m.mutex.RLock()
	entries := len(m.entries)
	m.mutex.RUnlock()

	return StoreStats{
		Hits:    atomic.LoadInt64(&m.hits),
		Misses:  atomic.LoadInt64(&m.misses),
		Sets:    atomic.LoadInt64(&m.sets),
		Deletes: atomic.LoadInt64(&m.deletes),
		Entries: entries,
	}
}
