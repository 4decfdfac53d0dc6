// Package gocache adapts github.com/eko/gocache caches to veloxgraph.Cache,
// so column metadata can be shared between processes through Redis or any
// other gocache store.
//
//	store := sqlgraph.NewColumnStore(fetcher,
//		sqlgraph.WithCache(gocache.NewRedis("localhost:6379", 0), dialect.Postgres, time.Hour),
//	)
package gocache

import (
	"context"
	"errors"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"

	"github.com/syssam/veloxgraph"
)

// Cache is a veloxgraph.Cache backed by a gocache cache of strings.
type Cache struct {
	c *cache.Cache[string]
}

// New returns a Cache storing values in c.
func New(c *cache.Cache[string]) *Cache {
	return &Cache{c: c}
}

// NewRedis returns a Cache storing values in the Redis database at addr.
func NewRedis(addr string, db int) *Cache {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return New(cache.New[string](redisstore.NewRedis(client)))
}

// Get implements veloxgraph.Cache. Missing keys return nil, nil.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.c.Get(ctx, key)
	if err != nil {
		var nf *store.NotFound
		if errors.As(err, &nf) || errors.Is(err, store.NotFound{}) {
			return nil, nil
		}
		return nil, err
	}
	if v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

// Set implements veloxgraph.Cache. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var opts []store.Option
	if ttl > 0 {
		opts = append(opts, store.WithExpiration(ttl))
	}
	return c.c.Set(ctx, key, string(value), opts...)
}

var _ veloxgraph.Cache = (*Cache)(nil)
