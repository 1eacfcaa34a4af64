package perfcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Set inserts or overwrites key. Without ttl the default expiration applies;
// a ttl <= 0 removes the key instead.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl ...time.Duration) {
	_, span := c.tracer.Start(ctx, "Cache.Set", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if c.closed.Load() {
		return
	}

	start := c.cfg.Clock()
	c.store.Set(key, value, ttl...)
	if key != "" {
		c.remember(key)
	}
	c.record("set", key, start, false, 0)

	c.autoClear(ctx)
}

// Get returns the live value for key.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	_, span := c.tracer.Start(ctx, "Cache.Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if c.closed.Load() {
		var zero V
		return zero, false
	}

	start := c.cfg.Clock()
	v, ok := c.store.Get(key)
	c.record("get", key, start, ok, 0)

	span.SetAttributes(attribute.Bool("hit", ok))
	if !ok && key != "" {
		c.classifyMiss(key)
	}
	return v, ok
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(ctx context.Context, key string) bool {
	_, span := c.tracer.Start(ctx, "Cache.Delete", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if c.closed.Load() {
		return false
	}

	start := c.cfg.Clock()
	ok := c.store.Delete(key)
	c.record("delete", key, start, false, 0)
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear(ctx context.Context) {
	_, span := c.tracer.Start(ctx, "Cache.Clear")
	defer span.End()

	if c.closed.Load() {
		return
	}

	start := c.cfg.Clock()
	c.store.Clear()
	c.record("clear", "", start, false, 0)
}

// Cleanup purges expired entries and returns how many were removed.
func (c *Cache[V]) Cleanup(ctx context.Context) int {
	_, span := c.tracer.Start(ctx, "Cache.Cleanup")
	defer span.End()

	if c.closed.Load() {
		return 0
	}

	start := c.cfg.Clock()
	removed := c.store.Cleanup()
	c.record("cleanup", "", start, false, 0)

	span.SetAttributes(attribute.Int("removed", removed))
	return removed
}

// Stats returns the store statistics. It is not recorded.
func (c *Cache[V]) Stats() Stats {
	return c.store.Stats()
}

// Inspect returns the metadata of key without counting a hit.
func (c *Cache[V]) Inspect(key string) (EntryInfo, bool) {
	return c.store.Inspect(key)
}

// Keys returns the stored keys, expired ones included.
func (c *Cache[V]) Keys() []string {
	return c.store.Keys()
}

// autoClear 使用率達到門檻時清除過期項目
func (c *Cache[V]) autoClear(ctx context.Context) {
	threshold := c.cfg.CacheBehaviorConfig.AutoClearThresholdPercent
	if threshold <= 0 {
		return
	}
	usage := float64(c.store.Len()) / float64(c.cfg.MaxSize) * 100
	if usage < threshold {
		return
	}
	if removed := c.Cleanup(ctx); removed > 0 {
		c.logger.Debug("auto clear purged expired entries",
			zap.Float64("usage_percent", usage),
			zap.Int("removed", removed))
	}
}
