package store

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
)

// RistrettoStore implements Store using Ristretto. Admission is approximate
// (TinyLFU), so a new key may be rejected instead of evicting the LRU entry.
type RistrettoStore[V any] struct {
	cache      *ristretto.Cache
	tracker    *Tracker[V]
	maxSize    int
	defaultTTL time.Duration

	// mu 保護項目的存取中繼資料
	mu  sync.Mutex
	seq uint64

	counters *models.Counters
	now      func() time.Time
	sizeOf   func(V) int
	logger   *zap.Logger
}

// NewRistrettoStore creates a new RistrettoStore instance. Every entry costs 1,
// so MaxCost bounds the entry count.
func NewRistrettoStore[V any](cfg *config.Config) (*RistrettoStore[V], error) {
	s := &RistrettoStore[V]{
		tracker:    NewTracker[V](cfg.Logger),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultExpiration,
		counters:   models.NewCounters(),
		now:        cfg.Clock,
		sizeOf:     sizer[V](cfg),
		logger:     cfg.Logger,
	}

	numCounters := int64(math.Min(float64(10*cfg.MaxSize), float64(math.MaxInt64)))

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            int64(cfg.MaxSize),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            s.onEvict,
		OnReject:           s.onReject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}
	s.cache = c

	return s, nil
}

// Set sets a cache entry.
func (s *RistrettoStore[V]) Set(key string, value V, ttl ...time.Duration) {
	if key == "" {
		return
	}
	d, expireNow := resolveTTL(s.defaultTTL, ttl)
	if expireNow {
		if s.tracker.Remove(key) {
			s.cache.Del(key)
			s.cache.Wait()
			s.counters.Expirations.Inc()
		}
		return
	}

	s.mu.Lock()
	s.seq++
	e := models.NewEntry(key, value, s.now(), d, s.seq)
	s.mu.Unlock()
	e.SizeBytes = s.sizeOf(value)

	s.tracker.Add(e)
	if !s.cache.SetWithTTL(key, e, 1, d) {
		s.tracker.RemoveEntry(e)
		s.logger.Warn("Ristretto SetWithTTL dropped", zap.String("key", key))
		return
	}
	s.cache.Wait()
}

// Get retrieves a cache entry.
func (s *RistrettoStore[V]) Get(key string) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}

	value, found := s.cache.Get(key)
	if !found {
		if s.tracker.Remove(key) {
			// ristretto 已自行清除過期項目
			s.counters.Expirations.Inc()
		}
		s.counters.Misses.Inc()
		return zero, false
	}

	e, ok := value.(*models.Entry[V])
	if !ok {
		s.logger.Error("Invalid cache entry type", zap.String("key", key))
		s.counters.Misses.Inc()
		return zero, false
	}

	now := s.now()
	if e.IsExpired(now) {
		s.tracker.RemoveEntry(e)
		s.cache.Del(key)
		s.cache.Wait()
		s.counters.Expirations.Inc()
		s.counters.Misses.Inc()
		return zero, false
	}

	s.mu.Lock()
	e.Touch(now)
	s.mu.Unlock()
	s.counters.Hits.Inc()
	return e.Value, true
}

// Delete removes a cache entry.
func (s *RistrettoStore[V]) Delete(key string) bool {
	if key == "" {
		return false
	}
	ok := s.tracker.Remove(key)
	s.cache.Del(key)
	s.cache.Wait()
	return ok
}

// Clear clears the entire cache.
func (s *RistrettoStore[V]) Clear() {
	s.tracker.Reset()
	s.cache.Clear()
}

// Cleanup removes tracked entries that are past their expiry.
func (s *RistrettoStore[V]) Cleanup() int {
	now := s.now()
	var expired []*models.Entry[V]
	s.tracker.Range(func(e *models.Entry[V]) bool {
		if e.IsExpired(now) {
			expired = append(expired, e)
		}
		return true
	})

	removed := 0
	for _, e := range expired {
		if s.tracker.RemoveEntry(e) {
			s.cache.Del(e.Key)
			removed++
		}
	}
	if removed > 0 {
		s.cache.Wait()
		s.counters.Expirations.Add(uint64(removed))
		s.logger.Debug("expired entries purged", zap.Int("count", removed))
	}
	return removed
}

// Stats returns the tracked size and counters.
func (s *RistrettoStore[V]) Stats() Stats {
	size, memory := 0, 0
	s.tracker.Range(func(e *models.Entry[V]) bool {
		size++
		memory += e.SizeBytes
		return true
	})
	return Stats{
		Size:                size,
		MaxSize:             s.maxSize,
		MemoryUsageEstimate: memory,
		Hits:                s.counters.Hits.Load(),
		Misses:              s.counters.Misses.Load(),
		Evictions:           s.counters.Evictions.Load(),
		Expirations:         s.counters.Expirations.Load(),
	}
}

// Len returns the tracked entry count.
func (s *RistrettoStore[V]) Len() int {
	return s.tracker.Len()
}

// Inspect returns the metadata of key without counting a hit.
func (s *RistrettoStore[V]) Inspect(key string) (models.EntryInfo, bool) {
	e, ok := s.tracker.Load(key)
	if !ok {
		return models.EntryInfo{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.Info(), true
}

// Keys returns tracked keys in insertion order.
func (s *RistrettoStore[V]) Keys() []string {
	var entries []*models.Entry[V]
	s.tracker.Range(func(e *models.Entry[V]) bool {
		entries = append(entries, e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// HotKeys returns up to limit live keys with at least minHits hits.
func (s *RistrettoStore[V]) HotKeys(minHits uint64, limit int) []string {
	now := s.now()
	hot := make([]models.EntryInfo, 0)

	s.mu.Lock()
	s.tracker.Range(func(e *models.Entry[V]) bool {
		if e.HitCount >= minHits && !e.IsExpired(now) {
			hot = append(hot, e.Info())
		}
		return true
	})
	s.mu.Unlock()

	return rankHot(hot, limit)
}

// Close closes the cache.
func (s *RistrettoStore[V]) Close() error {
	s.tracker.Reset()
	s.cache.Close()
	return nil
}

func (s *RistrettoStore[V]) onEvict(item *ristretto.Item) {
	e, ok := item.Value.(*models.Entry[V])
	if !ok {
		return
	}
	if !s.tracker.RemoveEntry(e) {
		return
	}
	if e.IsExpired(s.now()) {
		s.counters.Expirations.Inc()
		return
	}
	s.counters.Evictions.Inc()
	s.logger.Debug("entry evicted", zap.String("key", e.Key))
}

func (s *RistrettoStore[V]) onReject(item *ristretto.Item) {
	if e, ok := item.Value.(*models.Entry[V]); ok {
		s.tracker.RemoveEntry(e)
		s.logger.Debug("entry rejected by admission policy", zap.String("key", e.Key))
	}
}
