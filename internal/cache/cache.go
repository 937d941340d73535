package cache

import "time"

// Cache defines the interface for caching decoded upstream payloads with TTL.
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns the value and true if found and not expired, otherwise nil and false.
	// An expired entry is removed as a side effect.
	Get(key string) (any, bool)

	// Set stores a value in the cache with the given key and TTL, replacing
	// any previous entry. TTL of 0 means use the default cache TTL.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64 `json:"hits"`       // Total cache hits
	Misses    uint64 `json:"misses"`     // Total cache misses
	KeysAdded uint64 `json:"keys_added"` // Total keys added
	Evictions uint64 `json:"evictions"`  // Expired or evicted entries
	Items     int64  `json:"items"`      // Current number of items
}

// Option configures a cache implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// entry wraps a value with its expiration time.
type entry struct {
	value     any
	expiresAt time.Time
}

// visible reports whether the entry may still be served at now.
func (e *entry) visible(now time.Time) bool {
	return now.Before(e.expiresAt)
}
