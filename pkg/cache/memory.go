package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the number of entries kept by a MemoryCache when no
// size is given.
const DefaultMemorySize = 1024

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU cache. It is useful for long-running
// processes analyzing several flakes and for tests.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
}

// NewMemoryCache creates an LRU cache holding at most size entries.
// A non-positive size selects DefaultMemorySize.
func NewMemoryCache(size int) (Cache, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores a value in the cache.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Close purges all entries.
func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Ensure MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)
