package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Keksclan/goNutStash/latency"
)

// Redis is a Redis-backed cache store. Transport errors are surfaced to the
// caller rather than degraded to a miss, so cache failures stay visible in
// the demo's error metrics. Only redis.Nil counts as a miss.
type Redis struct {
	rdb   *redis.Client
	delay latency.Delay
}

// NewRedis creates a Redis-backed cache store. delay runs before every Get
// and Set to make the cache round-trip cost visible; pass nil for no delay.
func NewRedis(addr, password string, db int, delay latency.Delay) *Redis {
	if delay == nil {
		delay = latency.None
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{rdb: rdb, delay: delay}
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := r.delay(ctx); err != nil {
		return nil, false, err
	}
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := r.delay(ctx); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Flush removes all keys via FLUSHDB, which Redis applies atomically.
func (r *Redis) Flush(ctx context.Context) error {
	if err := r.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("redis flushdb: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
