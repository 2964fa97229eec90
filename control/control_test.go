package control

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Keksclan/goNutStash/metrics"
)

type fakeCache struct {
	data     map[string][]byte
	flushErr error
	flushes  int
}

func (c *fakeCache) Set(key string, val []byte) {
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = val
}

func (c *fakeCache) Flush(_ context.Context) error {
	if c.flushErr != nil {
		return c.flushErr
	}
	c.flushes++
	c.data = nil
	return nil
}

func countersZeroed(t *testing.T, rec *metrics.Recorder) bool {
	t.Helper()
	out, err := rec.Export()
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	return strings.Contains(out, `nutstash_cache_hits_total{route="/cache/{key}"} 0`)
}

func TestResetIdempotent(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.IncHit("/cache/{key}")
	rec.IncMiss("/cache/{key}")
	rec.IncBackingRead("/cache/{key}")

	c := &fakeCache{}
	c.Set("SKU-1", []byte("v"))

	p := NewPlane(c, rec)
	ctx := t.Context()

	if err := p.Reset(ctx); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	if len(c.data) != 0 {
		t.Fatal("cache not flushed")
	}
	if !countersZeroed(t, rec) {
		t.Fatal("counters not zeroed after first reset")
	}

	// Second reset on an already-cold system is a no-op with the same
	// observable end state.
	if err := p.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if !countersZeroed(t, rec) {
		t.Fatal("counters changed after second reset")
	}
	if c.flushes != 2 {
		t.Fatalf("flushes = %d, want 2", c.flushes)
	}
}

func TestResetStopsWhenFlushFails(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.IncHit("/cache/{key}")

	c := &fakeCache{flushErr: errors.New("redis down")}
	p := NewPlane(c, rec)

	err := p.Reset(t.Context())
	if err == nil {
		t.Fatal("expected flush error")
	}

	// Counters must be untouched so the caller can detect and retry.
	out, exportErr := rec.Export()
	if exportErr != nil {
		t.Fatalf("Export error: %v", exportErr)
	}
	if !strings.Contains(out, `nutstash_cache_hits_total{route="/cache/{key}"} 1`) {
		t.Fatalf("counters were reset despite flush failure:\n%s", out)
	}
}

func TestResetHonorsContext(t *testing.T) {
	rec := metrics.NewRecorder()
	c := &ctxCache{}
	p := NewPlane(c, rec)

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	if err := p.Reset(ctx); err == nil {
		t.Fatal("expected context error from flush")
	}
}

type ctxCache struct{}

func (ctxCache) Flush(ctx context.Context) error { return ctx.Err() }
