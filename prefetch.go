package perfcache

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	loadTimeout     = 5 * time.Second
	loadConcurrency = 8
)

// SetWarmLoader registers the loader used by Warmup, Prefetch and the
// warm_cache recommendation.
func (c *Cache[V]) SetWarmLoader(loader Loader[V]) {
	c.mu.Lock()
	c.warmLoader = loader
	c.mu.Unlock()
}

func (c *Cache[V]) loader() Loader[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.warmLoader
}

// Warmup 熱身快取，載入 WarmupKeys，回傳成功載入的數量
func (c *Cache[V]) Warmup(ctx context.Context) (int, error) {
	loader := c.loader()
	if loader == nil {
		return 0, ErrNoWarmLoader
	}
	return c.refresh(ctx, "warmup", c.cfg.CacheBehaviorConfig.WarmupKeys, loader), nil
}

// Prefetch 刷新熱門鍵（命中次數達 PrefetchThreshold，最多 PrefetchCount 個）
func (c *Cache[V]) Prefetch(ctx context.Context) (int, error) {
	loader := c.loader()
	if loader == nil {
		return 0, ErrNoWarmLoader
	}
	behavior := c.cfg.CacheBehaviorConfig
	keys := c.store.HotKeys(behavior.PrefetchThreshold, int(behavior.PrefetchCount))
	return c.refresh(ctx, "prefetch", keys, loader), nil
}

// refresh 並行載入 keys 並寫入快取，失敗的鍵只記錄日誌
func (c *Cache[V]) refresh(ctx context.Context, reason string, keys []string, loader Loader[V]) int {
	if len(keys) == 0 {
		return 0
	}

	var loaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for _, key := range keys {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, loadTimeout)
			defer cancel()

			if _, err := c.load(lctx, key, loader); err != nil {
				c.logger.Warn("Failed to "+reason+" key", zap.String("key", key), zap.Error(err))
				return nil
			}
			loaded.Inc()
			return nil
		})
	}
	_ = g.Wait()

	n := int(loaded.Load())
	c.logger.Debug(reason+" finished", zap.Int("requested", len(keys)), zap.Int("loaded", n))
	return n
}
