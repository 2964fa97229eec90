// Package store provides the durable catalog store the cache-aside path
// falls back to on a miss.
package store

import (
	"context"
	"errors"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/contextx"
)

// ErrNotFound reports a key with no catalog entry. It is a lookup outcome,
// not an infrastructure failure; callers map it to 404, everything else to
// 500.
var ErrNotFound = errors.New("product not found")

// Backing is the get-by-key contract of the durable store. Implementations
// surface transport errors unchanged and never retry; retry policy belongs
// to the underlying client.
type Backing interface {
	Get(ctx context.Context, key string) (*catalog.Product, error)
}

// ReadCounter receives one increment per backing-store read, attributed to a
// route label. Satisfied by *metrics.Recorder.
type ReadCounter interface {
	IncBackingRead(route string)
}

// Instrumented wraps a Backing and counts every read against the route label
// carried in ctx, so both the cache-aside path and the uncached baseline
// attribute their reads correctly.
type Instrumented struct {
	inner   Backing
	counter ReadCounter
}

// NewInstrumented wraps inner with per-route read counting.
func NewInstrumented(inner Backing, counter ReadCounter) *Instrumented {
	return &Instrumented{inner: inner, counter: counter}
}

// Get counts one backing read for the route in ctx, then delegates.
func (s *Instrumented) Get(ctx context.Context, key string) (*catalog.Product, error) {
	s.counter.IncBackingRead(contextx.RouteFromContext(ctx))
	return s.inner.Get(ctx, key)
}
