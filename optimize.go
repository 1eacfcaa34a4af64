package perfcache

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/advisor"
)

// Snapshot builds the advisor input: the store's read hit rate, the
// monitor's average response time and size/maxSize.
func (c *Cache[V]) Snapshot() advisor.Snapshot {
	stats := c.store.Stats()

	var hitRate float64
	if reads := stats.Hits + stats.Misses; reads > 0 {
		hitRate = float64(stats.Hits) / float64(reads)
	}
	return advisor.NewSnapshot(hitRate, c.monitor.AverageResponseTime(), stats.Size, stats.MaxSize)
}

// Optimize scores the cache and returns ranked recommendations. With
// autoApply, each recommendation is applied in order:
//
//	run_cleanup        -> Cleanup
//	enable_prefetch    -> Tuning.PrefetchEnabled
//	enable_compression -> Tuning.CompressionEnabled (no compression is performed)
//	warm_cache         -> Warmup, skipped when no warm loader is registered
func (c *Cache[V]) Optimize(ctx context.Context, autoApply bool) Report {
	ctx, span := c.tracer.Start(ctx, "Cache.Optimize")
	defer span.End()

	report := c.advisor.Report(c.Snapshot())
	span.SetAttributes(
		attribute.Float64("score", report.Score),
		attribute.Int("recommendations", len(report.Recommendations)))

	if !autoApply {
		return report
	}

	for _, rec := range report.Recommendations {
		if c.apply(ctx, rec.Action) {
			report.Applied = append(report.Applied, rec.Action)
		}
	}
	return report
}

func (c *Cache[V]) apply(ctx context.Context, action advisor.Action) bool {
	switch action {
	case advisor.ActionRunCleanup:
		removed := c.Cleanup(ctx)
		c.logger.Info("optimization applied", zap.String("action", string(action)), zap.Int("removed", removed))
	case advisor.ActionEnablePrefetch:
		c.mu.Lock()
		c.tuning.PrefetchEnabled = true
		c.mu.Unlock()
		c.logger.Info("optimization applied", zap.String("action", string(action)))
	case advisor.ActionEnableCompression:
		c.mu.Lock()
		c.tuning.CompressionEnabled = true
		c.mu.Unlock()
		c.logger.Info("optimization applied", zap.String("action", string(action)))
	case advisor.ActionWarmCache:
		n, err := c.Warmup(ctx)
		if errors.Is(err, ErrNoWarmLoader) {
			c.logger.Debug("warm_cache skipped: no warm loader")
			return false
		}
		c.logger.Info("optimization applied", zap.String("action", string(action)), zap.Int("loaded", n))
	default:
		return false
	}
	return true
}

// Run 執行背景維護：每個 CleanupInterval 清除過期項目，啟用預取時刷新熱門鍵。
// CleanupInterval 為 0 時立即返回；ctx 取消時結束。
func (c *Cache[V]) Run(ctx context.Context) {
	interval := c.cfg.CleanupInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.closed.Load() {
				return
			}
			c.maintain(ctx)
		case <-ctx.Done():
			c.logger.Info("Stopping maintenance routine due to context cancellation")
			return
		}
	}
}

func (c *Cache[V]) maintain(ctx context.Context) {
	c.Cleanup(ctx)

	if !c.Tuning().PrefetchEnabled {
		return
	}
	if _, err := c.Prefetch(ctx); err != nil && !errors.Is(err, ErrNoWarmLoader) {
		c.logger.Warn("prefetch failed", zap.Error(err))
	}
}
