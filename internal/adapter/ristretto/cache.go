// Package ristretto adapts dgraph-io/ristretto into the cache.Cache
// port, used to memoize decomposition results.
package ristretto

import (
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto.Cache to satisfy the cache.Cache port.
type Cache struct {
	inner *ristretto.Cache[string, any]
}

func New(maxCost int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: c}, nil
}

func (c *Cache) Get(key string) (any, bool) {
	return c.inner.Get(key)
}

func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) bool {
	ok := c.inner.SetWithTTL(key, value, 1, ttl)
	c.inner.Wait()
	return ok
}

func (c *Cache) Del(key string) {
	c.inner.Del(key)
}
