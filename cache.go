package veloxgraph

import (
	"context"
	"sync"
	"time"
)

// Cache is the interface for persisting column metadata between processes.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, a local file, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey generates a cache key for the column metadata of a table.
type CacheKey struct {
	Dialect string
	Table   string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return "columns:" + k.Dialect + ":" + k.Table
}

// MemoryCache is an in-process Cache. Entries never expire.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string][]byte)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[key], nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

var _ Cache = (*MemoryCache)(nil)
