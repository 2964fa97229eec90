// Package cache provides the cache-store contract used on the cache-aside
// read path, with a Redis-backed implementation and an in-process one backed
// by ristretto.
package cache

import (
	"context"
	"time"
)

// Store is the cache contract the read path depends on.
type Store interface {
	// Get retrieves a value by key. The boolean indicates a cache hit. An
	// absent entry is a miss regardless of whether it expired or was never
	// written; the store holds no separate expiry bookkeeping.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Flush removes all keys unconditionally. The removal is atomic from the
	// caller's point of view: concurrent readers see either the full cache
	// or an empty one, never a partial flush.
	Flush(ctx context.Context) error
}
