// Package cache is the TTL cache used by the edge proxy for page content and
// link extraction results. Values are JSON encoded.
//
//	c := cache.NewMemory()
//	links, err := cache.Remember(ctx, c, "links:"+url, ttl, func() ([]string, error) { ... })
package cache

import (
	"context"
	"time"

	"github.com/shashiranjanraj/lister/pkg/metrics"
)

// Store is implemented by the redis and memory drivers.
type Store interface {
	// Get decodes the cached value into dest and reports a hit.
	// Errors and misses both report false.
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Forget(ctx context.Context, key string) error
	Driver() string
}

// Remember returns the cached value for key or computes, stores and
// returns it. Errors from fn are returned without caching.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		metrics.CacheHits.WithLabelValues(s.Driver()).Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues(s.Driver()).Inc()

	v, err := fn()
	if err != nil {
		return v, err
	}
	_ = s.Set(ctx, key, v, ttl)
	return v, nil
}
