// Package weather serves the cabin's daily forecast from a time-boxed cache.
package weather

import (
	"sync"
	"time"
)

// Cache holds a single value together with the time it was fetched. Whether
// the value is fresh is decided against an injectable clock.
type Cache[T any] struct {
	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	filled    bool
	ttl       time.Duration
	now       func() time.Time
}

// NewCache creates an empty cache whose entries stay fresh for ttl.
func NewCache[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{ttl: ttl, now: now}
}

// Entry is a cached value and its age.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	Fresh     bool
}

// Get returns the cached entry. ok is false when nothing was ever stored.
func (c *Cache[T]) Get() (entry Entry[T], ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.filled {
		return Entry[T]{}, false
	}
	return Entry[T]{
		Value:     c.value,
		FetchedAt: c.fetchedAt,
		Fresh:     c.now().Sub(c.fetchedAt) < c.ttl,
	}, true
}

// Set stores value as fetched now.
func (c *Cache[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.fetchedAt = c.now()
	c.filled = true
}

// Clear drops the cached value.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.fetchedAt = time.Time{}
	c.filled = false
}
