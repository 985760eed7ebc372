package cache

import (
	"crypto/md5"
	"fmt"
	"sync"
	"time"
)

// Item is a cached value with expiration.
type Item struct {
	Value     any
	ExpiresAt time.Time
}

// IsExpired checks if the item has expired.
func (i *Item) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// Cache is a thread-safe TTL cache for computed responses (composite series
// mainly: the engine recomputes percentile baselines on every call, so the
// cache sits outside it, keyed by request parameters).
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	ttl   time.Duration
}

// New creates a cache with the given TTL and starts its cleanup loop.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*Item),
		ttl:   ttl,
	}
	go c.cleanup()
	return c
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, item := range c.items {
			if item.IsExpired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// Key builds a deterministic cache key from request parameters.
func Key(parts ...string) string {
	joined := ""
	for _, p := range parts {
		joined += p + "\x00"
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(joined)))
}

// Get retrieves a value; the second return reports a fresh hit.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || item.IsExpired() {
		return nil, false
	}
	return item.Value, true
}

// Set stores a value under the cache TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.items[key] = &Item{Value: value, ExpiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops one key, e.g. after a snapshot upsert changes the series.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the current number of entries, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
