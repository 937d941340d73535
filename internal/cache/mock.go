package cache

import (
	"sync"
	"time"
)

// MockCache is a map-backed cache for tests. It ignores TTLs and records
// how many times each key was written.
type MockCache struct {
	mu     sync.Mutex
	data   map[string]any
	Writes map[string]int
}

// NewMockCache creates a new mock cache for testing.
func NewMockCache() *MockCache {
	return &MockCache{
		data:   make(map[string]any),
		Writes: make(map[string]int),
	}
}

func (m *MockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, found := m.data[key]
	return val, found
}

func (m *MockCache) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.Writes[key]++
}

func (m *MockCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]any)
}

func (m *MockCache) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Items: int64(len(m.data)),
	}
}

// WriteCount returns how many times key was Set.
func (m *MockCache) WriteCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes[key]
}
