package store

import (
	"fmt"
	"time"

	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
	"goflare.io/perfcache/pkg/serialization"
)

// Store defines the interface for cache operations.
//
// A ttl passed to Set overrides the store default; a ttl <= 0 expires the
// key immediately. Empty keys are ignored.
type Store[V any] interface {
	Set(key string, value V, ttl ...time.Duration)
	Get(key string) (V, bool)
	Delete(key string) bool
	Clear()
	Cleanup() int
	Stats() Stats
	Len() int
	Inspect(key string) (models.EntryInfo, bool)
	Keys() []string
	HotKeys(minHits uint64, limit int) []string
	Close() error
}

// Stats 快取狀態快照
type Stats struct {
	Size                int    `json:"size"`
	MaxSize             int    `json:"maxSize"`
	MemoryUsageEstimate int    `json:"memoryUsageEstimate"`
	Hits                uint64 `json:"hits"`
	Misses              uint64 `json:"misses"`
	Evictions           uint64 `json:"evictions"`
	Expirations         uint64 `json:"expirations"`
}

// UsageRatio returns Size/MaxSize.
func (s Stats) UsageRatio() float64 {
	if s.MaxSize <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.MaxSize)
}

// New 依照配置建立對應引擎的 Store
func New[V any](cfg *config.Config) (Store[V], error) {
	switch cfg.Engine {
	case config.EngineLRU, "":
		return NewLRUStore[V](cfg), nil
	case config.EngineRistretto:
		return NewRistrettoStore[V](cfg)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownEngine, cfg.Engine)
	}
}

// resolveTTL 回傳 ttl 以及是否應立即過期
func resolveTTL(defaultTTL time.Duration, ttl []time.Duration) (time.Duration, bool) {
	if len(ttl) == 0 {
		return defaultTTL, false
	}
	if ttl[0] <= 0 {
		return 0, true
	}
	return ttl[0], false
}

func sizer[V any](cfg *config.Config) func(V) int {
	enc := cfg.Serialization.Encoder
	return func(v V) int {
		return serialization.SizeOf(enc, v)
	}
}
