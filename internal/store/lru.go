package store

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
)

// LRUStore 精確的 LRU 快取。淘汰時掃描全部項目，取
// (LastAccessedAt, CreatedAt, 插入順序) 最小者。
type LRUStore[V any] struct {
	mu         sync.Mutex
	entries    map[string]*models.Entry[V]
	maxSize    int
	defaultTTL time.Duration
	seq        uint64
	memory     int

	counters *models.Counters
	now      func() time.Time
	sizeOf   func(V) int
	logger   *zap.Logger
}

// NewLRUStore creates an exact LRU store from cfg.
func NewLRUStore[V any](cfg *config.Config) *LRUStore[V] {
	return &LRUStore[V]{
		entries:    make(map[string]*models.Entry[V], cfg.MaxSize),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultExpiration,
		counters:   models.NewCounters(),
		now:        cfg.Clock,
		sizeOf:     sizer[V](cfg),
		logger:     cfg.Logger,
	}
}

// Set inserts or overwrites key.
func (s *LRUStore[V]) Set(key string, value V, ttl ...time.Duration) {
	if key == "" {
		return
	}
	d, expireNow := resolveTTL(s.defaultTTL, ttl)
	size := s.sizeOf(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if expireNow {
		if _, ok := s.entries[key]; ok {
			s.removeLocked(key)
			s.counters.Expirations.Inc()
		}
		return
	}

	if _, ok := s.entries[key]; ok {
		s.removeLocked(key)
	} else if len(s.entries) >= s.maxSize {
		s.evictLocked()
	}

	s.seq++
	e := models.NewEntry(key, value, s.now(), d, s.seq)
	e.SizeBytes = size
	s.entries[key] = e
	s.memory += size
}

// Get returns the value for key. Expired entries are removed.
func (s *LRUStore[V]) Get(key string) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.counters.Misses.Inc()
		return zero, false
	}
	now := s.now()
	if e.IsExpired(now) {
		s.removeLocked(key)
		s.counters.Expirations.Inc()
		s.counters.Misses.Inc()
		return zero, false
	}

	e.Touch(now)
	s.counters.Hits.Inc()
	return e.Value, true
}

// Delete removes key and reports whether it was present.
func (s *LRUStore[V]) Delete(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	s.removeLocked(key)
	return true
}

// Clear removes every entry. Counters are kept.
func (s *LRUStore[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*models.Entry[V], s.maxSize)
	s.memory = 0
}

// Cleanup purges expired entries and returns how many were removed.
func (s *LRUStore[V]) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.IsExpired(now) {
			s.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		s.counters.Expirations.Add(uint64(removed))
		s.logger.Debug("expired entries purged", zap.Int("count", removed))
	}
	return removed
}

// Stats returns a consistent snapshot.
func (s *LRUStore[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Size:                len(s.entries),
		MaxSize:             s.maxSize,
		MemoryUsageEstimate: s.memory,
		Hits:                s.counters.Hits.Load(),
		Misses:              s.counters.Misses.Load(),
		Evictions:           s.counters.Evictions.Load(),
		Expirations:         s.counters.Expirations.Load(),
	}
}

// Len returns the stored entry count, expired ones included.
func (s *LRUStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Inspect returns the metadata of key without counting a hit.
func (s *LRUStore[V]) Inspect(key string) (models.EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return models.EntryInfo{}, false
	}
	return e.Info(), true
}

// Keys returns stored keys in insertion order, expired ones included.
func (s *LRUStore[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*models.Entry[V], 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// HotKeys returns up to limit live keys with at least minHits hits, most hit first.
func (s *LRUStore[V]) HotKeys(minHits uint64, limit int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hot := make([]models.EntryInfo, 0)
	for _, e := range s.entries {
		if e.HitCount >= minHits && !e.IsExpired(now) {
			hot = append(hot, e.Info())
		}
	}
	return rankHot(hot, limit)
}

// Close 釋放資源
func (s *LRUStore[V]) Close() error {
	s.Clear()
	return nil
}

func (s *LRUStore[V]) evictLocked() {
	var victim *models.Entry[V]
	for _, e := range s.entries {
		if victim == nil || e.OlderThan(victim) {
			victim = e
		}
	}
	if victim == nil {
		return
	}
	s.removeLocked(victim.Key)
	s.counters.Evictions.Inc()
	s.logger.Debug("entry evicted", zap.String("key", victim.Key))
}

func (s *LRUStore[V]) removeLocked(key string) {
	if e, ok := s.entries[key]; ok {
		s.memory -= e.SizeBytes
		delete(s.entries, key)
	}
}

// rankHot 依命中數遞減排序，同分依 key
func rankHot(hot []models.EntryInfo, limit int) []string {
	sort.Slice(hot, func(i, j int) bool {
		if hot[i].HitCount != hot[j].HitCount {
			return hot[i].HitCount > hot[j].HitCount
		}
		return hot[i].Key < hot[j].Key
	})
	if limit > 0 && len(hot) > limit {
		hot = hot[:limit]
	}
	keys := make([]string, len(hot))
	for i, h := range hot {
		keys[i] = h.Key
	}
	return keys
}
