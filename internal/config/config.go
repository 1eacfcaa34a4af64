package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/perfcache/pkg/serialization"
)

const (
	// EngineLRU is the exact least-recently-accessed store.
	EngineLRU = "lru"
	// EngineRistretto is the approximate TinyLFU store backed by ristretto.
	EngineRistretto = "ristretto"
)

// Config 快取與效能監控的配置
type Config struct {
	Engine            string
	MaxSize           int
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration

	CacheBehaviorConfig CacheBehaviorConfig
	MonitorConfig       MonitorConfig
	AdvisorConfig       AdvisorConfig
	ResilienceConfig    ResilienceConfig
	Serialization       SerializationConfig
	Settings            Settings
	Logger              *zap.Logger
	Clock               func() time.Time
}

// CacheBehaviorConfig 緩存行為相關配置
type CacheBehaviorConfig struct {
	EnablePrefetch            bool
	PrefetchThreshold         uint64
	PrefetchCount             uint64
	WarmupKeys                []string
	AutoClearThresholdPercent float64
	BloomFilterSettings       BloomFilterConfig
}

// BloomFilterConfig 用於未命中分類的布隆過濾器
type BloomFilterConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// MonitorConfig 效能監控配置
type MonitorConfig struct {
	HistoryLimit int
	// Namespace is the Prometheus namespace used when metrics export is enabled.
	Namespace string
	// Registry 非 nil 時匯出 Prometheus 指標
	Registry prometheus.Registerer
}

// AdvisorConfig 優化建議的閾值
type AdvisorConfig struct {
	MinHitRate            float64
	MaxAvgResponseTimeMs  float64
	MaxMemoryUsageRatio   float64
	MinEfficiencyScore    float64
	ResponseTimeCeilingMs float64
}

// ResilienceConfig 用於 loader 的重試和熔斷器
type ResilienceConfig struct {
	LoaderCircuitBreaker gobreaker.Settings
	MaxRetries           int
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	Multiplier           float64
	RandomizationFactor  float64
}

// SerializationConfig 序列化相關配置，用於估算項目大小
type SerializationConfig struct {
	Type    string
	Encoder func(io.Writer) serialization.Encoder
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrMaxSizeZero      = errors.New("max size must be at least 1")
	ErrHistoryLimitZero = errors.New("monitor history limit must be at least 1")
	ErrUnknownEngine    = errors.New("unknown cache engine")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Engine:            EngineLRU,
		MaxSize:           1000,
		DefaultExpiration: 5 * time.Minute,
		CacheBehaviorConfig: CacheBehaviorConfig{
			EnablePrefetch:    false,
			PrefetchThreshold: 10,
			PrefetchCount:     10,
			BloomFilterSettings: BloomFilterConfig{
				ExpectedItems:     10000,
				FalsePositiveRate: 0.01,
			},
		},
		MonitorConfig: MonitorConfig{
			HistoryLimit: 1000,
			Namespace:    "perfcache",
		},
		AdvisorConfig: DefaultAdvisorConfig(),
		ResilienceConfig: ResilienceConfig{
			LoaderCircuitBreaker: gobreaker.Settings{
				Name:        "LoaderCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			MaxRetries:          3,
			InitialInterval:     100 * time.Millisecond,
			MaxInterval:         time.Second,
			Multiplier:          2.0,
			RandomizationFactor: 0.1,
		},
		Serialization: SerializationConfig{
			Type:    serialization.JSONType,
			Encoder: serialization.JSONEncoder,
		},
		Settings: Settings{
			CompressionLevel: 6,
		},
		Logger: zap.NewNop(),
		Clock:  time.Now,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultAdvisorConfig returns the fixed thresholds used to classify cache state.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		MinHitRate:            0.7,
		MaxAvgResponseTimeMs:  200,
		MaxMemoryUsageRatio:   0.8,
		MinEfficiencyScore:    60,
		ResponseTimeCeilingMs: 500,
	}
}

// Validate 最終檢查
func (c *Config) Validate() error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.MaxSize < 1 {
		return ErrMaxSizeZero
	}
	if c.MonitorConfig.HistoryLimit < 1 {
		return ErrHistoryLimitZero
	}
	switch c.Engine {
	case EngineLRU, EngineRistretto:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}
	if c.DefaultExpiration <= 0 {
		c.Logger.Warn("non-positive default expiration, falling back to 5m",
			zap.Duration("default_expiration", c.DefaultExpiration))
		c.DefaultExpiration = 5 * time.Minute
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithMaxSize 設置最大項目數
func WithMaxSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return ErrMaxSizeZero
		}
		c.MaxSize = size
		return nil
	}
}

// WithDefaultExpiration 設置默認的過期時間
func WithDefaultExpiration(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl <= 0 {
			return fmt.Errorf("default expiration must be positive, got %v", ttl)
		}
		c.DefaultExpiration = ttl
		return nil
	}
}

// WithEngine selects the store engine.
func WithEngine(engine string) Option {
	return func(c *Config) error {
		switch engine {
		case EngineLRU, EngineRistretto:
			c.Engine = engine
			return nil
		default:
			return fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
		}
	}
}

// WithHistoryLimit 設置監控記錄的最大數量
func WithHistoryLimit(limit int) Option {
	return func(c *Config) error {
		if limit <= 0 {
			return ErrHistoryLimitZero
		}
		c.MonitorConfig.HistoryLimit = limit
		return nil
	}
}

// WithMetricsRegistry exports monitor metrics to reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(c *Config) error {
		c.MonitorConfig.Registry = reg
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		if clock != nil {
			c.Clock = clock
		}
		return nil
	}
}

// WithSerialization 設置序列化方式
func WithSerialization(serializer string) Option {
	return func(c *Config) error {
		switch serializer {
		case serialization.JSONType:
			c.Serialization = SerializationConfig{Type: serializer, Encoder: serialization.JSONEncoder}
		case serialization.GobType:
			c.Serialization = SerializationConfig{Type: serializer, Encoder: serialization.GobEncoder}
		default:
			return fmt.Errorf("unsupported serialization type: %s", serializer)
		}
		return nil
	}
}

// WithCleanupInterval 設置背景清理的間隔，0 表示不啟用
func WithCleanupInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval < 0 {
			return fmt.Errorf("cleanup interval must not be negative, got %v", interval)
		}
		c.CleanupInterval = interval
		return nil
	}
}

// WithPrefetch 啟用預取，命中次數達到 threshold 的項目最多刷新 count 個
func WithPrefetch(threshold, count uint64) Option {
	return func(c *Config) error {
		c.CacheBehaviorConfig.EnablePrefetch = true
		c.CacheBehaviorConfig.PrefetchThreshold = threshold
		c.CacheBehaviorConfig.PrefetchCount = count
		return nil
	}
}

// WithWarmupKeys 設置熱身的鍵
func WithWarmupKeys(keys ...string) Option {
	return func(c *Config) error {
		c.CacheBehaviorConfig.WarmupKeys = append([]string(nil), keys...)
		return nil
	}
}

// WithAutoClearThreshold runs Cleanup after a Set once the fill percentage reaches percent.
func WithAutoClearThreshold(percent float64) Option {
	return func(c *Config) error {
		if percent < 0 || percent > 100 {
			return fmt.Errorf("auto clear threshold must be within [0, 100], got %v", percent)
		}
		c.CacheBehaviorConfig.AutoClearThresholdPercent = percent
		return nil
	}
}

// WithBloomFilter 設置布隆過濾器的容量與誤判率
func WithBloomFilter(expectedItems uint, falsePositiveRate float64) Option {
	return func(c *Config) error {
		if expectedItems == 0 || falsePositiveRate <= 0 || falsePositiveRate >= 1 {
			return fmt.Errorf("invalid bloom filter settings: %d items, %v rate", expectedItems, falsePositiveRate)
		}
		c.CacheBehaviorConfig.BloomFilterSettings = BloomFilterConfig{
			ExpectedItems:     expectedItems,
			FalsePositiveRate: falsePositiveRate,
		}
		return nil
	}
}

// WithAdvisorConfig 設置優化建議的閾值
func WithAdvisorConfig(ac AdvisorConfig) Option {
	return func(c *Config) error {
		c.AdvisorConfig = ac
		return nil
	}
}

// WithRetry 設置 loader 的重試次數與退避區間
func WithRetry(maxRetries int, initial, maxInterval time.Duration) Option {
	return func(c *Config) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries must not be negative, got %d", maxRetries)
		}
		c.ResilienceConfig.MaxRetries = maxRetries
		c.ResilienceConfig.InitialInterval = initial
		c.ResilienceConfig.MaxInterval = maxInterval
		return nil
	}
}

// WithLoaderCircuitBreaker 設置 loader 的熔斷器
func WithLoaderCircuitBreaker(settings gobreaker.Settings) Option {
	return func(c *Config) error {
		c.ResilienceConfig.LoaderCircuitBreaker = settings
		return nil
	}
}
