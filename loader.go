package perfcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// GetOrLoad returns the cached value for key, or loads, stores and returns it.
// Concurrent loads of the same key share one loader call. The loader runs
// behind the retrier and the circuit breaker; failures are recorded as
// "cache:load:<key>" with ErrorCount 1.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, loader Loader[V], ttl ...time.Duration) (V, error) {
	var zero V
	if loader == nil {
		return zero, ErrNilLoader
	}
	if key == "" {
		return zero, ErrKeyNotFound
	}
	if c.closed.Load() {
		return zero, ErrCacheClosed
	}

	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	ctx, span := c.tracer.Start(ctx, "Cache.GetOrLoad", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	v, err, shared := c.sf.Do(key, func() (any, error) {
		return c.load(ctx, key, loader, ttl...)
	})
	span.SetAttributes(attribute.Bool("shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	if v == nil {
		return zero, nil
	}
	value, ok := v.(V)
	if !ok {
		return zero, ErrKeyNotFound
	}
	return value, nil
}

// load 呼叫 loader 並寫入快取
func (c *Cache[V]) load(ctx context.Context, key string, loader Loader[V], ttl ...time.Duration) (V, error) {
	start := c.cfg.Clock()
	value, err := c.executeWithResilience(ctx, key, loader)
	if err != nil {
		c.record("load", key, start, false, 1)
		c.logger.Warn("loader failed", zap.String("key", key), zap.Error(err))
		return value, err
	}
	c.record("load", key, start, false, 0)

	c.Set(ctx, key, value, ttl...)
	return value, nil
}
