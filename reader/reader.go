// Package reader implements the cache-aside read path: check the cache,
// fall back to the backing store on a miss, populate the cache with a TTL,
// and record exactly one hit-or-miss increment and one duration observation
// per call.
package reader

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/goNutStash/cache"
	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/contextx"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/store"
)

// DefaultTTL is how long a populated cache entry lives.
const DefaultTTL = 30 * time.Second

// Outcome status labels recorded per request.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// StatusFor maps a read outcome onto the status label recorded in metrics.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, store.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusError
	}
}

// CacheAside orchestrates reads through an injected cache and backing store.
// It does not own either collaborator and takes no locks of its own: two
// concurrent misses for the same key may both read the store and both write
// the cache, and the last write wins.
type CacheAside struct {
	cache   cache.Store
	store   store.Backing
	metrics *metrics.Recorder
	ttl     time.Duration
	tracer  trace.Tracer
}

// Option configures a CacheAside.
type Option func(*CacheAside)

// WithTTL overrides the cache-entry TTL (default 30 s).
func WithTTL(ttl time.Duration) Option {
	return func(r *CacheAside) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTracerProvider supplies the tracer used to span each read. When unset
// the global otel provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *CacheAside) {
		if tp != nil {
			r.tracer = tp.Tracer("github.com/Keksclan/goNutStash/reader")
		}
	}
}

// New creates a CacheAside over the given collaborators.
func New(c cache.Store, s store.Backing, m *metrics.Recorder, opts ...Option) *CacheAside {
	r := &CacheAside{
		cache:   c,
		store:   s,
		metrics: m,
		ttl:     DefaultTTL,
		tracer:  otel.GetTracerProvider().Tracer("github.com/Keksclan/goNutStash/reader"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// TTL returns the configured cache-entry TTL.
func (r *CacheAside) TTL() time.Duration {
	return r.ttl
}

// Read looks up key, serving from the cache when possible. The bool reports
// whether the product came from the cache. route is only a metrics label.
//
// A not-found result is never cached, so repeated lookups of a nonexistent
// key cost a full backing-store round trip every time.
func (r *CacheAside) Read(ctx context.Context, route, key string) (p *catalog.Product, cached bool, err error) {
	ctx = contextx.WithRoute(ctx, route)

	end := r.metrics.Observe("GET", route)
	defer func() { end(StatusFor(err)) }()

	ctx, span := r.tracer.Start(ctx, "catalog.read",
		trace.WithAttributes(attribute.String("catalog.sku", key)))
	defer span.End()
	defer func() { recordSpan(span, cached, err) }()

	val, ok, cerr := r.cache.Get(ctx, key)
	if cerr != nil {
		// A broken cache still counts as a miss; the error propagates
		// unchanged so failure rates remain measurable.
		r.metrics.IncMiss(route)
		return nil, false, cerr
	}
	if ok {
		p, derr := catalog.Decode(val)
		if derr != nil {
			r.metrics.IncMiss(route)
			return nil, false, derr
		}
		p.Derive()
		r.metrics.IncHit(route)
		return p, true, nil
	}

	r.metrics.IncMiss(route)

	p, serr := r.store.Get(ctx, key)
	if serr != nil {
		// ErrNotFound passes through untouched and nothing is cached.
		return nil, false, serr
	}
	p.Derive()

	data, eerr := p.Encode()
	if eerr != nil {
		return nil, false, eerr
	}
	if serr := r.cache.Set(ctx, key, data, r.ttl); serr != nil {
		return nil, false, serr
	}
	return p, false, nil
}

func recordSpan(span trace.Span, cached bool, err error) {
	span.SetAttributes(attribute.Bool("cache.hit", cached))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
