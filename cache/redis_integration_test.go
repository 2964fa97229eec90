package cache

import (
	"os"
	"testing"
	"time"
)

func redisStore(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	r := NewRedis(addr, "", 0, nil)
	t.Cleanup(func() { _ = r.Close() })
	if err := r.Ping(t.Context()); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	return r
}

func TestRedis_GetSet(t *testing.T) {
	r := redisStore(t)
	ctx := t.Context()

	key := "test:nutstash:getset:" + t.Name()

	// Miss returns false.
	_, ok, err := r.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	// Set then Get.
	if err := r.Set(ctx, key, []byte("v1"), 10*time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, ok, err := r.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "v1" {
		t.Fatalf("got %q, want %q", val, "v1")
	}
}

func TestRedis_Flush(t *testing.T) {
	r := redisStore(t)
	ctx := t.Context()

	if err := r.Set(ctx, "test:nutstash:flush", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if _, ok, _ := r.Get(ctx, "test:nutstash:flush"); ok {
		t.Fatal("key survived flush")
	}
}
