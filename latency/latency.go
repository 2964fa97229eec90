// Package latency provides the injectable delay the cache and store adapters
// apply before each operation, so their simulated round-trip cost shows up in
// end-to-end timing. Tests inject [None] to assert on ordering and counts
// without wall-clock cost.
package latency

import (
	"context"
	"time"
)

// Delay blocks for one simulated I/O round trip. It returns early with the
// context error when ctx is done, so load tests can be interrupted without
// leaking goroutines.
type Delay func(ctx context.Context) error

// Fixed returns a Delay that sleeps for d.
func Fixed(d time.Duration) Delay {
	return func(ctx context.Context) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// None never sleeps. It still reports the context error so cancellation is
// observed at the same points as with a real delay.
func None(ctx context.Context) error {
	return ctx.Err()
}
