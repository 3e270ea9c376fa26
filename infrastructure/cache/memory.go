package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is the single-process fallback used when no Redis address is
// configured. Values are stored JSON-encoded so readers get independent
// copies, matching what the Redis cache returns. Expired entries are
// dropped when read.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
}

// Get decodes the cached value for key into dest
func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return false, nil
	}
	if c.now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key for ttl
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items[key] = cacheItem{value: raw, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes keys from the cache
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}
