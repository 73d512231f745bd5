package cache

import (
	"sync"
	"time"
)

// sweepThreshold bounds the backing map in a long-lived process: once the
// map grows past this many entries, the next Set walks it and drops
// everything that has already expired.
const sweepThreshold = 1000

type entry[T any] struct {
	value      T
	insertedAt time.Time
}

// Cache is an in-memory TTL cache. Get treats "never set" and "expired"
// identically: callers fall back to the source of truth either way.
// Entries are process-local; in a multi-instance deployment each instance
// converges on its own within the TTL window.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache at construction time.
type Option[T any] func(*Cache[T])

// WithClock overrides the time source. Used by tests to simulate expiry.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) {
		c.now = now
	}
}

// New creates a Cache whose entries live for ttl.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, or the zero value and false when the
// key was never set or its entry has expired. Expired entries are evicted on
// the spot.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		var zero T
		return zero, false
	}

	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= sweepThreshold {
		c.sweepLocked()
	}

	c.entries[key] = entry[T]{value: value, insertedAt: c.now()}
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) sweepLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}
