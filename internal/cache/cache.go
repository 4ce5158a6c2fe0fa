// Package cache implements the cache-aside read path in front of the
// authoritative store. A Layer without a backend is a pass-through.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Read-through cache hits",
	})
	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Read-through cache misses, including degraded-mode reads",
	})
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_errors_total",
		Help: "Cache backend failures by operation",
	}, []string{"op"})
	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_invalidations_total",
		Help: "Cache invalidations by kind",
	}, []string{"kind"})
)

// Backend is a key/value store with per-entry expiry.
type Backend interface {
	// Get returns ok=false on a miss or an expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// ComputeFunc produces the payload for a missing key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Layer wraps a Backend with read-through semantics. Backend failures never
// fail a request: reads fall back to compute and writes are logged.
type Layer struct {
	backend Backend
	logger  *slog.Logger
}

// New builds a Layer. backend may be nil for degraded mode.
func New(backend Backend, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{backend: backend, logger: logger.With(slog.String("component", "cache"))}
}

// Enabled reports whether a backend is configured.
func (l *Layer) Enabled() bool {
	return l != nil && l.backend != nil
}

// GetOrCompute returns the cached payload for key, or runs compute, stores its
// result for ttl and returns it with hit=false. Errors from compute are
// returned unchanged and nothing is stored.
func (l *Layer) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, bool, error) {
	if !l.Enabled() {
		missesTotal.Inc()
		payload, err := compute(ctx)
		return payload, false, err
	}

	payload, ok, err := l.backend.Get(ctx, key)
	switch {
	case err != nil:
		errorsTotal.WithLabelValues("get").Inc()
		l.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case ok:
		hitsTotal.Inc()
		return payload, true, nil
	}
	missesTotal.Inc()

	payload, err = compute(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := l.backend.Set(ctx, key, payload, ttl); err != nil {
		errorsTotal.WithLabelValues("set").Inc()
		l.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return payload, false, nil
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (l *Layer) InvalidatePrefix(ctx context.Context, prefix string) {
	if !l.Enabled() {
		return
	}
	invalidationsTotal.WithLabelValues("prefix").Inc()
	n, err := l.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		errorsTotal.WithLabelValues("delete_prefix").Inc()
		l.logger.Warn("cache prefix invalidation failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		return
	}
	l.logger.Debug("cache prefix invalidated", slog.String("prefix", prefix), slog.Int("keys", n))
}

// Invalidate removes exactly the given keys.
func (l *Layer) Invalidate(ctx context.Context, keys ...string) {
	if !l.Enabled() || len(keys) == 0 {
		return
	}
	invalidationsTotal.WithLabelValues("key").Add(float64(len(keys)))
	if err := l.backend.Delete(ctx, keys...); err != nil {
		errorsTotal.WithLabelValues("delete").Inc()
		l.logger.Warn("cache key invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}
