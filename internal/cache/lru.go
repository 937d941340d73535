package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRUCache is an entry-bounded cache implementation using ristretto.
// Expiry is checked lazily on Get, same as TTLCache.
type LRUCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
	now        func() time.Time
}

// NewLRU creates a new LRU cache holding at most maxEntries values.
// Every entry costs 1, so MaxCost is the entry limit.
func NewLRU(maxEntries int64, defaultTTL time.Duration, opts ...Option) (*LRUCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	// NumCounters should be ~10x the number of entries for optimal performance
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxEntries,
		BufferItems: 64, // Number of keys per Get buffer
		Metrics:     true,
		// cost is an entry count, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &LRUCache{
		cache:      cache,
		defaultTTL: defaultTTL,
		now:        o.now,
	}, nil
}

// Get retrieves a value from the cache by key.
func (c *LRUCache) Get(key string) (any, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}

	e, ok := val.(*entry)
	if !ok {
		// Invalid item type, delete it
		c.cache.Del(key)
		return nil, false
	}

	if !e.visible(c.now()) {
		c.cache.Del(key)
		return nil, false
	}

	return e.value, true
}

// Set stores a value in the cache with the given key and TTL.
func (c *LRUCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	// Set may drop the item under contention; ristretto handles admission.
	_ = c.cache.Set(key, &entry{value: value, expiresAt: c.now().Add(ttl)}, 1)

	// Wait for value to pass through buffers so the next Get sees it
	c.cache.Wait()
}

// Delete removes a value from the cache.
func (c *LRUCache) Delete(key string) {
	c.cache.Del(key)
}

// Clear removes all values from the cache.
func (c *LRUCache) Clear() {
	c.cache.Clear()
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close closes the cache and releases resources.
func (c *LRUCache) Close() {
	c.cache.Close()
}
