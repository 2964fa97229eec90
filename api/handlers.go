// Package api exposes the demo's HTTP surface: the cached and uncached read
// endpoints, the load trigger, the metrics exposition and the reset control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/contextx"
	"github.com/Keksclan/goNutStash/loadgen"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/reader"
	"github.com/Keksclan/goNutStash/store"
)

// Route labels used for metrics partitioning. They match the mux patterns so
// the exposition lines up with the registered endpoints.
const (
	RouteCache   = "/cache/{key}"
	RouteNoCache = "/nocache/{key}"
)

// ReadPath is the cache-aside entry point. Satisfied by *reader.CacheAside.
type ReadPath interface {
	Read(ctx context.Context, route, key string) (*catalog.Product, bool, error)
}

// Warmer triggers a warm-up burst. Satisfied by *loadgen.Generator.
type Warmer interface {
	Warm(ctx context.Context, count int) (loadgen.Summary, error)
}

// Resetter clears cache and counter state. Satisfied by *control.Plane.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger reports collaborator health. Optional.
type Pinger func(ctx context.Context) error

// Handler handles the demo's HTTP requests.
type Handler struct {
	Reader   ReadPath
	Store    store.Backing // uncached baseline; should be the instrumented store
	Loader   Warmer
	Control  Resetter
	Recorder *metrics.Recorder
	Logger   *slog.Logger

	// Optional health probes for /healthz.
	CachePing Pinger
	StorePing Pinger
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cache/{key}", h.GetCached)
	mux.HandleFunc("GET /nocache/{key}", h.GetUncached)
	mux.HandleFunc("POST /simulate-load", h.SimulateLoad)
	mux.HandleFunc("GET /metrics", h.ServeMetrics)
	mux.HandleFunc("POST /reset", h.Reset)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

// productResponse is a product body plus whether it came from the cache.
type productResponse struct {
	*catalog.Product
	Cached bool `json:"cached"`
}

// GetCached handles GET /cache/{key}: the cache-aside read path.
func (h *Handler) GetCached(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	p, cached, err := h.Reader.Read(r.Context(), RouteCache, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{Product: p, Cached: cached})
}

// GetUncached handles GET /nocache/{key}: the uncached baseline. It bypasses
// the reader entirely but still records one observation and one backing read
// so the two paths stay comparable.
func (h *Handler) GetUncached(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ctx := contextx.WithRoute(r.Context(), RouteNoCache)

	end := h.Recorder.Observe("GET", RouteNoCache)
	p, err := h.Store.Get(ctx, key)
	end(reader.StatusFor(err))

	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.Derive()
	writeJSON(w, http.StatusOK, productResponse{Product: p, Cached: false})
}

// SimulateLoad handles POST /simulate-load: {"count": n}.
func (h *Handler) SimulateLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		http.Error(w, "count must be positive", http.StatusBadRequest)
		return
	}

	sum, err := h.Loader.Warm(r.Context(), req.Count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string         `json:"message"`
		Summary loadgen.Summary `json:"summary"`
	}{
		Message: fmt.Sprintf("warmed %d keys in %dms (%d hits, %d misses, %d failures)",
			sum.Issued, sum.ElapsedMS, sum.Hits, sum.Misses, sum.Failures),
		Summary: sum,
	})
}

// ServeMetrics handles GET /metrics with the recorder's text exposition.
func (h *Handler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	out, err := h.Recorder.Export()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType())
	_, _ = w.Write([]byte(out))
}

// Reset handles POST /reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Control.Reset(r.Context()); err != nil {
		h.logger().Error("reset failed", "error", err,
			"request_id", contextx.RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "reset",
		"cache":    "flushed",
		"counters": "zeroed",
	})
}

// Healthz handles GET /healthz, pinging whichever probes are configured.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Pinger{"cache": h.CachePing, "store": h.StorePing}
	status := map[string]string{}
	healthy := true
	for name, ping := range checks {
		if ping == nil {
			continue
		}
		if err := ping(r.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
		} else {
			status[name] = "ok"
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	} else {
		h.logger().Error("request failed", "method", r.Method, "path", r.URL.Path,
			"error", err, "request_id", contextx.RequestIDFromContext(r.Context()))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
