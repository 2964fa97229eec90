package gonutstash

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/goNutStash/cache"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/store"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger replaces the default stderr logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics replaces the default recorder. Useful for sharing a registry in
// tests.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithCache bypasses the Redis/in-process selection and uses the given cache.
func WithCache(c cache.Store) Option {
	return func(s *Service) { s.cache = c }
}

// WithStore bypasses Postgres and uses the given backing store.
func WithStore(b store.Backing) Option {
	return func(s *Service) { s.backing = b }
}

// WithTracerProvider enables tracing on the read path and the gRPC surface.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp }
}
