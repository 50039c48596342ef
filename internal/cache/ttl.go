// Package cache provides a small TTL key-value cache for query results.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a mutex-guarded cache with per-entry expiry. Expired entries
// are evicted lazily on access.
type TTL[V any] struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]entry[V]
	now func() time.Time // overridable for tests
}

// New creates a cache whose entries live for ttl.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl: ttl,
		m:   make(map[string]entry[V]),
		now: time.Now,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.m, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops one key.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Clear drops everything.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]entry[V])
}

// Len reports live (unexpired) entries, evicting dead ones as it counts.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.m {
		if now.After(e.expiresAt) {
			delete(c.m, k)
		}
	}
	return len(c.m)
}
