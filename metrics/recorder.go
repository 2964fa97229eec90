// Package metrics provides the Prometheus-backed recorder shared by the
// read path, the load generator and the HTTP surface. A Recorder owns its
// own registry and is passed by reference to every consumer, so tests get a
// fresh instance instead of fighting process-wide state.
package metrics

import (
	"bytes"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "nutstash"

// Buckets for request durations, in seconds. The interesting range is the
// gap between a ~2 ms cache round trip and a ~50 ms store round trip.
var durationBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// Recorder records request counts, request durations and the
// cache-effectiveness counters (hits, misses, backing-store reads), all
// partitioned by route.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	backingReads *prometheus.CounterVec

	mu     sync.Mutex
	routes map[string]struct{}
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		routes:   make(map[string]struct{}),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total requests handled, by method, route and outcome status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Request duration in seconds, by method and route",
				Buckets:   durationBuckets,
			},
			[]string{"method", "route"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Reads served from the cache",
			},
			[]string{"route"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Reads that fell through to the backing store",
			},
			[]string{"route"},
		),
		backingReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backing_reads_total",
				Help:      "Backing store reads",
			},
			[]string{"route"},
		),
	}

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.cacheHits,
		r.cacheMisses,
		r.backingReads,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for promhttp wiring.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe starts a timing observation for one request. The returned end
// function finalizes the duration histogram and counts the request under the
// given outcome status. Callers must invoke it exactly once per request,
// errors included.
func (r *Recorder) Observe(method, route string) func(status string) {
	r.track(route)
	start := time.Now()
	return func(status string) {
		r.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		r.requestsTotal.WithLabelValues(method, route, status).Inc()
	}
}

// IncHit counts one cache hit for route.
func (r *Recorder) IncHit(route string) {
	r.track(route)
	r.cacheHits.WithLabelValues(route).Inc()
}

// IncMiss counts one cache miss for route.
func (r *Recorder) IncMiss(route string) {
	r.track(route)
	r.cacheMisses.WithLabelValues(route).Inc()
}

// IncBackingRead counts one backing-store read for route.
func (r *Recorder) IncBackingRead(route string) {
	r.track(route)
	r.backingReads.WithLabelValues(route).Inc()
}

func (r *Recorder) track(route string) {
	r.mu.Lock()
	r.routes[route] = struct{}{}
	r.mu.Unlock()
}

// ResetCounters zeroes the cache-effectiveness counters (hits, misses,
// backing reads). Request counts and duration histograms are left alone so
// overall traffic history survives a reset. Every route seen so far is
// re-materialized at zero, so no series disappears from the exposition.
func (r *Recorder) ResetCounters() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, vec := range []*prometheus.CounterVec{r.cacheHits, r.cacheMisses, r.backingReads} {
		vec.Reset()
		for route := range r.routes {
			vec.WithLabelValues(route)
		}
	}
}

// Export renders the current metric state in the canonical Prometheus text
// format, one family per line group, sorted by metric name and label set.
func (r *Recorder) Export() (string, error) {
	mfs, err := r.registry.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// ContentType is the media type of the Export output.
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}
