// Package gonutstash assembles the cache-aside demo service: a product
// catalog read path that consults a fast cache (Redis or in-process) before a
// slower backing store, with Prometheus metrics on every layer, a concurrent
// load generator and a reset control plane.
package gonutstash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Keksclan/goNutStash/api"
	"github.com/Keksclan/goNutStash/cache"
	"github.com/Keksclan/goNutStash/control"
	"github.com/Keksclan/goNutStash/latency"
	"github.com/Keksclan/goNutStash/loadgen"
	"github.com/Keksclan/goNutStash/logging"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/reader"
	"github.com/Keksclan/goNutStash/rpc"
	"github.com/Keksclan/goNutStash/store"
)

// memoryCacheCapacity bounds the in-process fallback cache.
const memoryCacheCapacity = 100_000

// Service wires the demo together and owns the HTTP (and optional gRPC)
// listeners.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	recorder *metrics.Recorder
	cache    cache.Store
	backing  store.Backing
	tracer   trace.TracerProvider

	handler  http.Handler
	grpcSrv  *grpc.Server
	closers  []func() error
}

// NewService builds a Service from the given config. Collaborators not
// overridden via options are constructed from the config: Redis when an
// address is set (falling back to the in-process cache if it is unreachable),
// Postgres for the backing store.
func NewService(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.New(os.Stderr, cfg.LogLevel)
	}
	if s.recorder == nil {
		s.recorder = metrics.NewRecorder()
	}

	if s.cache == nil {
		if err := s.buildCache(ctx); err != nil {
			return nil, err
		}
	}
	if s.backing == nil {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN, latency.Fixed(cfg.StoreLatency))
		if err != nil {
			return nil, fmt.Errorf("backing store: %w", err)
		}
		s.backing = pg
		s.closers = append(s.closers, pg.Close)
	}

	instr := store.NewInstrumented(s.backing, s.recorder)

	readerOpts := []reader.Option{reader.WithTTL(cfg.TTL)}
	if s.tracer != nil {
		readerOpts = append(readerOpts, reader.WithTracerProvider(s.tracer))
	}
	rd := reader.New(s.cache, instr, s.recorder, readerOpts...)

	loadOpts := []loadgen.Option{
		loadgen.WithConcurrency(cfg.Warm.Concurrency),
		loadgen.WithKeyspace(cfg.Warm.Keyspace),
		loadgen.WithKeyPattern(cfg.Warm.KeyPattern),
	}
	if cfg.Warm.Rate > 0 {
		loadOpts = append(loadOpts, loadgen.WithRate(float64(cfg.Warm.Rate), cfg.Warm.Burst))
	}

	h := &api.Handler{
		Reader:   rd,
		Store:    instr,
		Loader:   loadgen.New(rd, loadOpts...),
		Control:  control.NewPlane(s.cache, s.recorder),
		Recorder: s.recorder,
		Logger:   s.logger,
	}
	if p, ok := s.cache.(interface{ Ping(context.Context) error }); ok {
		h.CachePing = p.Ping
	}
	if p, ok := s.backing.(interface{ Ping(context.Context) error }); ok {
		h.StorePing = p.Ping
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	s.handler = api.RequestID(api.AccessLog(s.logger, mux))

	if cfg.GRPCAddr != "" {
		s.grpcSrv = grpc.NewServer(grpc.ChainUnaryInterceptor(
			rpc.RecoveryUnary(),
			rpc.TracingUnary(s.tracer),
		))
		rpc.Register(s.grpcSrv, rpc.NewService(rd))
	}

	return s, nil
}

// buildCache selects Redis when configured and reachable, otherwise the
// in-process cache.
func (s *Service) buildCache(ctx context.Context) error {
	delay := latency.Fixed(s.cfg.CacheLatency)

	if s.cfg.Redis.Addr != "" {
		r := cache.NewRedis(s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB, delay)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := r.Ping(pingCtx)
		cancel()
		if err == nil {
			s.logger.Info("using redis cache", "addr", s.cfg.Redis.Addr)
			s.cache = r
			s.closers = append(s.closers, r.Close)
			return nil
		}
		_ = r.Close()
		s.logger.Warn("redis unreachable, using in-process cache",
			"addr", s.cfg.Redis.Addr, "error", err)
	}

	m, err := cache.NewMemory(memoryCacheCapacity, delay)
	if err != nil {
		return fmt.Errorf("in-process cache: %w", err)
	}
	s.cache = m
	return nil
}

// Handler returns the fully wired HTTP handler. Exposed for tests and for
// embedding the service behind an existing server.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP (and gRPC when configured) until ctx is cancelled, then
// shuts both down gracefully.
func (s *Service) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		s.logger.Info("http listening", "addr", s.cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpcSrv != nil {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grp.Go(func() error {
			s.logger.Info("grpc listening", "addr", s.cfg.GRPCAddr)
			if err := s.grpcSrv.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s.grpcSrv != nil {
			s.grpcSrv.GracefulStop()
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	return grp.Wait()
}

// Close releases the cache and store connections.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
