package loadgen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/reader"
	"github.com/Keksclan/goNutStash/store"
)

// memCache is a minimal deterministic cache store for end-to-end warm-up
// tests (TTL is irrelevant within a single burst).
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *memCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type countingStore struct {
	products map[string]*catalog.Product
	reads    atomic.Int64
}

func seededStore(n int) *countingStore {
	s := &countingStore{products: make(map[string]*catalog.Product)}
	for i := 1; i <= n; i++ {
		sku := fmt.Sprintf("SKU-%d", i)
		s.products[sku] = &catalog.Product{SKU: sku, Price: float64(100 * i), Discount: 10}
	}
	return s
}

func (s *countingStore) Get(_ context.Context, key string) (*catalog.Product, error) {
	s.reads.Add(1)
	p, ok := s.products[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func warmSetup(t *testing.T, s *countingStore, opts ...Option) (*Generator, *memCache, *metrics.Recorder) {
	t.Helper()
	rec := metrics.NewRecorder()
	c := newMemCache()
	r := reader.New(c, store.NewInstrumented(s, rec), rec)
	return New(r, opts...), c, rec
}

func TestWarmColdKeyspace(t *testing.T) {
	s := seededStore(50)
	g, c, rec := warmSetup(t, s)

	sum, err := g.Warm(t.Context(), 50)
	if err != nil {
		t.Fatalf("Warm error: %v", err)
	}

	if sum.Issued != 50 || sum.Misses != 50 || sum.Hits != 0 || sum.Failures != 0 {
		t.Fatalf("summary = %+v, want 50 issued misses", sum)
	}
	// 50 distinct previously-uncached keys: exactly one backing read each.
	if got := s.reads.Load(); got != 50 {
		t.Fatalf("backing reads = %d, want 50", got)
	}
	if got := c.len(); got != 50 {
		t.Fatalf("cache holds %d keys, want 50", got)
	}

	out, err := rec.Export()
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if !strings.Contains(out, `nutstash_cache_misses_total{route="/cache/{key}"} 50`) {
		t.Fatalf("warm-up misses not recorded:\n%s", out)
	}
}

func TestWarmAgainHitsCache(t *testing.T) {
	s := seededStore(20)
	g, _, _ := warmSetup(t, s)
	ctx := t.Context()

	if _, err := g.Warm(ctx, 20); err != nil {
		t.Fatalf("first Warm: %v", err)
	}
	sum, err := g.Warm(ctx, 20)
	if err != nil {
		t.Fatalf("second Warm: %v", err)
	}

	if sum.Hits != 20 || sum.Misses != 0 {
		t.Fatalf("summary = %+v, want 20 hits", sum)
	}
	if got := s.reads.Load(); got != 20 {
		t.Fatalf("backing reads = %d, want 20 (second burst must be all hits)", got)
	}
}

func TestWarmKeyspaceWraps(t *testing.T) {
	s := seededStore(10)
	g, c, _ := warmSetup(t, s, WithKeyspace(10))

	sum, err := g.Warm(t.Context(), 30)
	if err != nil {
		t.Fatalf("Warm error: %v", err)
	}
	if sum.Issued != 30 {
		t.Fatalf("issued = %d, want 30", sum.Issued)
	}
	if got := c.len(); got != 10 {
		t.Fatalf("cache holds %d keys, want 10", got)
	}
	// Wrapped indices race within the burst, so bounds instead of exact
	// counts: at least one miss per distinct key, at most one read per
	// issued request.
	if sum.Misses < 10 || sum.Misses > 30 {
		t.Fatalf("misses = %d, want 10..30", sum.Misses)
	}
	if sum.Hits+sum.Misses != 30 {
		t.Fatalf("hits+misses = %d, want 30", sum.Hits+sum.Misses)
	}
}

func TestWarmFailuresDoNotAbortBatch(t *testing.T) {
	// Only half the keyspace exists; the rest are not-found failures.
	s := seededStore(10)
	g, _, _ := warmSetup(t, s)

	sum, err := g.Warm(t.Context(), 20)
	if err != nil {
		t.Fatalf("Warm error: %v", err)
	}
	if sum.Failures != 10 || sum.Misses != 10 {
		t.Fatalf("summary = %+v, want 10 failures and 10 misses", sum)
	}
}

func TestWarmRejectsBadCount(t *testing.T) {
	g, _, _ := warmSetup(t, seededStore(1))
	if _, err := g.Warm(t.Context(), 0); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestWarmCancelledBeforeIssuing(t *testing.T) {
	g, _, _ := warmSetup(t, seededStore(5))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := g.Warm(ctx, 5); err == nil {
		t.Fatal("expected scheduling error on cancelled context")
	}
}

func TestWarmPacedByRate(t *testing.T) {
	s := seededStore(8)
	// 4 requests immediately (burst), the rest at 100/s: 8 reads need
	// at least ~40ms.
	g, _, _ := warmSetup(t, s, WithRate(100, 4))

	start := time.Now()
	sum, err := g.Warm(t.Context(), 8)
	if err != nil {
		t.Fatalf("Warm error: %v", err)
	}
	if sum.Issued != 8 {
		t.Fatalf("issued = %d, want 8", sum.Issued)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("burst finished in %v, expected rate pacing to slow it", elapsed)
	}
}
