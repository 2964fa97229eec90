package cache

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Keksclan/goNutStash/latency"
)

// Memory is an in-process cache store backed by ristretto. It honors the
// same TTL contract as the Redis store and serves redis-less runs and tests.
type Memory struct {
	rc    *ristretto.Cache[string, []byte]
	delay latency.Delay
}

// NewMemory creates an in-process cache store. maxCost bounds the total cost
// ristretto will hold (each entry costs 1). delay runs before every Get and
// Set; pass nil for no delay.
func NewMemory(maxCost int64, delay latency.Delay) (*Memory, error) {
	if delay == nil {
		delay = latency.None
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{rc: rc, delay: delay}, nil
}

// Get retrieves a value by key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.delay(ctx); err != nil {
		return nil, false, err
	}
	v, ok := m.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a value under key with the given TTL.
func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := m.delay(ctx); err != nil {
		return err
	}
	m.rc.SetWithTTL(key, bytes.Clone(val), 1, ttl)
	m.rc.Wait()
	return nil
}

// Flush removes all keys. ristretto's Clear is atomic with respect to
// concurrent readers.
func (m *Memory) Flush(_ context.Context) error {
	m.rc.Clear()
	return nil
}
