package cache

import (
	"sync"
	"time"
)

// TTLCache is an unbounded in-memory cache. Entries are never swept in the
// background; an expired entry is dropped on the Get that observes it.
type TTLCache struct {
	mu         sync.Mutex
	items      map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time
	stats      Stats
}

// NewTTL creates a TTLCache whose Set(…, 0) uses defaultTTL.
func NewTTL(defaultTTL time.Duration, opts ...Option) *TTLCache {
	o := buildOptions(opts)
	return &TTLCache{
		items:      make(map[string]*entry),
		defaultTTL: defaultTTL,
		now:        o.now,
	}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !e.visible(c.now()) {
		delete(c.items, key)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.items[key] = &entry{value: value, expiresAt: c.now().Add(ttl)}
	c.stats.KeysAdded++
	c.mu.Unlock()
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Items = int64(len(c.items))
	return s
}
