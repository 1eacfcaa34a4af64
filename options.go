package perfcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/config"
)

// Option 定義初始化 Cache 的選項
type Option = config.Option

const (
	// EngineLRU 精確 LRU（預設）
	EngineLRU = config.EngineLRU
	// EngineRistretto 以 ristretto 實作的近似引擎
	EngineRistretto = config.EngineRistretto
)

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return config.WithLogger(logger)
}

// WithMaxSize 設置最大項目數
func WithMaxSize(size int) Option {
	return config.WithMaxSize(size)
}

// WithDefaultExpiration 設置默認的過期時間
func WithDefaultExpiration(ttl time.Duration) Option {
	return config.WithDefaultExpiration(ttl)
}

// WithEngine selects EngineLRU or EngineRistretto.
func WithEngine(engine string) Option {
	return config.WithEngine(engine)
}

// WithCleanupInterval enables the Run maintenance loop.
func WithCleanupInterval(interval time.Duration) Option {
	return config.WithCleanupInterval(interval)
}

// WithHistoryLimit bounds the number of retained metric records.
func WithHistoryLimit(limit int) Option {
	return config.WithHistoryLimit(limit)
}

// WithClock replaces time.Now for expiry, timestamps and response times.
func WithClock(clock func() time.Time) Option {
	return config.WithClock(clock)
}

// WithSerialization 設置估算項目大小所用的序列化方式（"json" 或 "gob"）
func WithSerialization(serializer string) Option {
	return config.WithSerialization(serializer)
}

// WithSettings 套用設定頁面的值
func WithSettings(s Settings) Option {
	return config.WithSettings(s)
}

// WithSettingsFile loads a YAML settings document.
func WithSettingsFile(path string) Option {
	return config.WithSettingsFile(path)
}

// FromEnv loads .env files and <prefix>_* variables; an empty prefix means PERFCACHE.
func FromEnv(prefix string, files ...string) Option {
	return config.FromEnv(prefix, files...)
}

// WithPrefetch enables hot key refresh.
func WithPrefetch(threshold, count uint64) Option {
	return config.WithPrefetch(threshold, count)
}

// WithWarmupKeys sets the keys loaded by Warmup.
func WithWarmupKeys(keys ...string) Option {
	return config.WithWarmupKeys(keys...)
}

// WithAutoClearThreshold runs Cleanup once the fill percentage reaches percent.
func WithAutoClearThreshold(percent float64) Option {
	return config.WithAutoClearThreshold(percent)
}

// WithBloomFilter sizes the filter used to classify misses.
func WithBloomFilter(expectedItems uint, falsePositiveRate float64) Option {
	return config.WithBloomFilter(expectedItems, falsePositiveRate)
}

// WithAdvisorThresholds overrides the advisor thresholds.
func WithAdvisorThresholds(minHitRate, maxAvgResponseTimeMs, maxMemoryUsageRatio, minEfficiencyScore float64) Option {
	ac := config.DefaultAdvisorConfig()
	ac.MinHitRate = minHitRate
	ac.MaxAvgResponseTimeMs = maxAvgResponseTimeMs
	ac.MaxMemoryUsageRatio = maxMemoryUsageRatio
	ac.MinEfficiencyScore = minEfficiencyScore
	return config.WithAdvisorConfig(ac)
}

// WithRetry 設置 loader 的重試
func WithRetry(maxRetries int, initial, maxInterval time.Duration) Option {
	return config.WithRetry(maxRetries, initial, maxInterval)
}

// WithLoaderCircuitBreaker 設置 loader 的熔斷器
func WithLoaderCircuitBreaker(settings gobreaker.Settings) Option {
	return config.WithLoaderCircuitBreaker(settings)
}

// WithMetricsRegistry exports monitor metrics to reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return config.WithMetricsRegistry(reg)
}
