package di

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds how many entries accumulate before a Set sweeps
// expired ones out.
const sweepThreshold = 1024

// InMemoryCache backs the unread-count decorator with a per-process map.
// Entries expire on read rather than via a background janitor, since the
// Lambda runtime freezes goroutines between invocations; Set sweeps
// expired entries once the map grows past sweepThreshold.
type InMemoryCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		items: make(map[string]cacheItem),
	}
}

// Get returns the live value for key, evicting it if expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return nil, false
	}

	return item.value, true
}

// Set stores value under key for ttl seconds.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= sweepThreshold {
		now := time.Now()
		for k, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, k)
			}
		}
	}

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: time.Now().Add(time.Duration(ttl) * time.Second),
	}

	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}
