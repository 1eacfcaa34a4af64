// Package perfcache is an in-process key-value cache with TTL expiry and
// bounded LRU eviction, instrumented by a performance monitor whose
// aggregates feed an optimization advisor.
package perfcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/perfcache/internal/advisor"
	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
	"goflare.io/perfcache/internal/monitor"
	"goflare.io/perfcache/internal/retrier"
	"goflare.io/perfcache/internal/store"
)

type (
	// Settings 設定頁面的配置，原樣保存
	Settings = config.Settings
	// CDNSettings 只作為資料保存
	CDNSettings = config.CDNSettings
	// Stats 快取狀態快照
	Stats = store.Stats
	// EntryInfo 項目的中繼資料
	EntryInfo = models.EntryInfo
	// MetricRecord 一次操作的效能紀錄
	MetricRecord = models.MetricRecord
	// MetricInput 由呼叫端提供的紀錄欄位
	MetricInput = models.MetricInput
	// TimeRange 時間範圍，兩端皆包含
	TimeRange = monitor.TimeRange
	// Report 評分與建議
	Report = advisor.Report
	// Recommendation 一條優化建議
	Recommendation = advisor.Recommendation
)

// Loader loads the value for key on a cache miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// Tuning 由 Optimize 切換的旗標，本身不改變快取行為
type Tuning struct {
	PrefetchEnabled    bool `json:"prefetchEnabled"`
	CompressionEnabled bool `json:"compressionEnabled"`
}

// MissBreakdown 未命中的分類
type MissBreakdown struct {
	// Cold 從未寫入過的鍵
	Cold uint64 `json:"cold"`
	// Warm 曾經寫入，已被刪除、淘汰或過期
	Warm uint64 `json:"warm"`
}

// Cache wires a Store, a Monitor and an Advisor together. Every store
// operation is timed and recorded as "cache:<op>:<key>".
type Cache[V any] struct {
	cfg     *config.Config
	store   store.Store[V]
	monitor *monitor.Monitor
	advisor *advisor.Advisor

	tracer  trace.Tracer
	sf      singleflight.Group
	breaker *gobreaker.CircuitBreaker
	retrier *retrier.Retrier

	filterMu   sync.Mutex
	filter     *bloom.BloomFilter
	coldMisses atomic.Uint64
	warmMisses atomic.Uint64

	mu         sync.RWMutex
	tuning     Tuning
	warmLoader Loader[V]

	closed atomic.Bool
	logger *zap.Logger
}

// New 建立 Cache，接受多個配置選項
func New[V any](opts ...Option) (*Cache[V], error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	s, err := store.New[V](cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	m, err := monitor.New(cfg)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize monitor: %w", err)
	}

	r, err := retrier.FromConfig(cfg.ResilienceConfig, nil)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize retrier: %w", err)
	}

	bf := cfg.CacheBehaviorConfig.BloomFilterSettings

	c := &Cache[V]{
		cfg:     cfg,
		store:   s,
		monitor: m,
		advisor: advisor.New(cfg.AdvisorConfig),
		tracer:  otel.Tracer("perfcache"),
		breaker: gobreaker.NewCircuitBreaker(cfg.ResilienceConfig.LoaderCircuitBreaker),
		retrier: r,
		filter:  bloom.NewWithEstimates(bf.ExpectedItems, bf.FalsePositiveRate),
		tuning: Tuning{
			PrefetchEnabled:    cfg.CacheBehaviorConfig.EnablePrefetch,
			CompressionEnabled: cfg.Settings.EnableCompression,
		},
		logger: cfg.Logger,
	}

	c.logger.Debug("cache initialized",
		zap.String("engine", cfg.Engine),
		zap.Int("max_size", cfg.MaxSize),
		zap.Duration("default_expiration", cfg.DefaultExpiration))

	return c, nil
}

// Monitor exposes the performance monitor, e.g. for RecordMetric or Metrics.
func (c *Cache[V]) Monitor() *monitor.Monitor {
	return c.monitor
}

// Settings returns the settings document unchanged.
func (c *Cache[V]) Settings() Settings {
	return c.cfg.Settings
}

// Tuning returns the flags toggled by Optimize.
func (c *Cache[V]) Tuning() Tuning {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tuning
}

// Close 釋放資源。Close 之後的操作視為未命中。
func (c *Cache[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	c.logger.Debug("cache closed")
	return nil
}

// record 將一次操作寫入監控
func (c *Cache[V]) record(op, key string, start time.Time, hit bool, errs int) {
	label := "cache:" + op
	if key != "" {
		label += ":" + key
	}
	c.monitor.RecordMetric(models.MetricInput{
		OperationLabel:      label,
		ResponseTimeMs:      float64(c.cfg.Clock().Sub(start)) / float64(time.Millisecond),
		CacheHit:            hit,
		MemoryUsageSnapshot: float64(c.store.Len()),
		ErrorCount:          errs,
	})
}
