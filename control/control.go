// Package control implements the reset operation that returns the demo to a
// cold-cache, zero-counter state.
package control

import (
	"context"
	"fmt"
)

// Flusher clears a cache store. Satisfied by the cache adapters.
type Flusher interface {
	Flush(ctx context.Context) error
}

// CounterResetter zeroes cache-effectiveness counters. Satisfied by
// *metrics.Recorder.
type CounterResetter interface {
	ResetCounters()
}

// Plane coordinates the reset across the shared cache and metrics state.
type Plane struct {
	cache   Flusher
	metrics CounterResetter
}

// NewPlane creates a control plane over the given collaborators.
func NewPlane(cache Flusher, metrics CounterResetter) *Plane {
	return &Plane{cache: cache, metrics: metrics}
}

// Reset flushes the cache, then zeroes the hit/miss/backing-read counters.
// When the flush fails the counters are left untouched and the error is
// returned, so the caller can detect the partial state and retry. The two
// steps are not transactional: a successful flush is never rolled back.
// Reset is idempotent; repeating it on an already-cold system is a no-op.
func (p *Plane) Reset(ctx context.Context) error {
	if err := p.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	p.metrics.ResetCounters()
	return nil
}
