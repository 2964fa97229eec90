// Package loadgen issues concurrent bursts of cache-aside reads to warm the
// cache and produce comparable throughput samples.
package loadgen

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Keksclan/goNutStash/catalog"
)

// DefaultConcurrency bounds the in-flight reads of one burst.
const DefaultConcurrency = 16

// Reader is the read entry point the generator drives. Satisfied by
// *reader.CacheAside.
type Reader interface {
	Read(ctx context.Context, route, key string) (*catalog.Product, bool, error)
}

// Summary describes one completed warm-up burst.
type Summary struct {
	Issued    int     `json:"issued"`
	Hits      int     `json:"hits"`
	Misses    int     `json:"misses"`
	Failures  int     `json:"failures"`
	ElapsedMS int64   `json:"elapsedMs"`
	PerSecond float64 `json:"perSecond"`
}

// Generator fans out reads against a key pattern.
type Generator struct {
	reader      Reader
	route       string
	keyPattern  string
	keyspace    int
	concurrency int
	limiter     *rate.Limiter
}

// Option configures a Generator.
type Option func(*Generator)

// WithRoute sets the metrics route label warm-up reads are attributed to.
func WithRoute(route string) Option {
	return func(g *Generator) { g.route = route }
}

// WithKeyPattern sets the fmt pattern keys are generated from; it must
// contain exactly one %d verb.
func WithKeyPattern(pattern string) Option {
	return func(g *Generator) {
		if pattern != "" {
			g.keyPattern = pattern
		}
	}
}

// WithKeyspace caps the distinct key indices; bursts larger than n wrap
// around so they re-read (and therefore hit) earlier keys. Zero means no
// wrapping.
func WithKeyspace(n int) Option {
	return func(g *Generator) { g.keyspace = n }
}

// WithConcurrency bounds the in-flight reads of a burst.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithRate paces issued reads with a token bucket of rps requests per second
// and the given burst size.
func WithRate(rps float64, burst int) Option {
	return func(g *Generator) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Generator driving r.
func New(r Reader, opts ...Option) *Generator {
	g := &Generator{
		reader:      r,
		route:       "/cache/{key}",
		keyPattern:  "SKU-%d",
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Warm issues count concurrent reads against keys generated from the key
// pattern and blocks until every issued read has resolved. A failed read is
// counted and never aborts the rest of the batch. Warm returns an error only
// when the fan-out itself cannot be scheduled (the context ends before all
// reads are issued); even then it waits for the reads already in flight.
func (g *Generator) Warm(ctx context.Context, count int) (Summary, error) {
	if count <= 0 {
		return Summary{}, fmt.Errorf("warm count must be positive, got %d", count)
	}

	start := time.Now()
	var hits, misses, failures atomic.Int64

	grp := new(errgroup.Group)
	grp.SetLimit(g.concurrency)

	var (
		schedErr error
		issued   int
	)
	for i := 1; i <= count; i++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				schedErr = err
				break
			}
		} else if err := ctx.Err(); err != nil {
			schedErr = err
			break
		}

		key := g.key(i)
		issued++
		grp.Go(func() error {
			_, cached, err := g.reader.Read(ctx, g.route, key)
			switch {
			case err != nil:
				failures.Add(1)
			case cached:
				hits.Add(1)
			default:
				misses.Add(1)
			}
			return nil
		})
	}

	_ = grp.Wait()

	if schedErr != nil {
		return Summary{}, fmt.Errorf("warm-up aborted while issuing: %w", schedErr)
	}

	elapsed := time.Since(start)
	s := Summary{
		Issued:    issued,
		Hits:      int(hits.Load()),
		Misses:    int(misses.Load()),
		Failures:  int(failures.Load()),
		ElapsedMS: elapsed.Milliseconds(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.PerSecond = float64(issued) / secs
	}
	return s, nil
}

func (g *Generator) key(i int) string {
	if g.keyspace > 0 {
		i = (i-1)%g.keyspace + 1
	}
	return fmt.Sprintf(g.keyPattern, i)
}
