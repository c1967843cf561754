package cache

import (
	"context"
	"sync"
	"time"
)

// Default sizing for the in-process backend.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// memoryEntry is a stored value plus the bookkeeping eviction needs.
// seq orders entries by insertion so eviction can drop the oldest.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	seq       uint64
}

// Memory is an in-process Cache backed by a mutex-guarded map. Entries
// expire after their TTL; when the entry cap is reached, Set first drops
// expired entries and then the oldest entry.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	seq        uint64
	defaultTTL time.Duration
	maxEntries int
}

// NewMemory creates an in-process cache. Non-positive defaultTTL or
// maxEntries select the package defaults.
func NewMemory(defaultTTL time.Duration, maxEntries int) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Memory{
		entries:    make(map[string]*memoryEntry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
	}
}

// Ensure Memory implements Cache interface
var _ Cache = (*Memory)(nil)

// Get implements Cache.
// It returns a copy of the stored value so callers cannot mutate cache
// internals.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set implements Cache.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.seq++
	m.entries[key] = &memoryEntry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
		seq:       m.seq,
	}
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Close implements Cache.
// It drops all entries; the cache remains usable afterwards.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	return nil
}

// Len returns the number of entries currently stored, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// evictLocked makes room for one new entry: expired entries go first,
// then the oldest entry by insertion order. Callers must hold mu.
func (m *Memory) evictLocked() {
	now := time.Now()
	dropped := false
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			dropped = true
		}
	}
	if dropped {
		return
	}

	var oldestKey string
	var oldestSeq uint64
	for key, entry := range m.entries {
		if oldestKey == "" || entry.seq < oldestSeq {
			oldestKey = key
			oldestSeq = entry.seq
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
