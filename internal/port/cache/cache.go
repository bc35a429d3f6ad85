// Package cache defines the bounded key-value port used to memoize
// decomposition results, implemented by the ristretto adapter.
package cache

import "time"

// Cache is a bounded, concurrency-safe key-value store with optional
// per-entry TTL.
type Cache interface {
	Get(key string) (value any, ok bool)
	SetWithTTL(key string, value any, ttl time.Duration) bool
	Del(key string)
}
