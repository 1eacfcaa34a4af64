package store

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/models"
)

// Tracker tracks the entries held by a ristretto cache, which cannot enumerate its keys.
type Tracker[V any] struct {
	trackedKeys sync.Map
	count       atomic.Int64
	logger      *zap.Logger
}

// NewTracker creates a new Tracker instance.
func NewTracker[V any](logger *zap.Logger) *Tracker[V] {
	return &Tracker[V]{
		logger: logger,
	}
}

// Add adds or replaces the entry for its key.
func (t *Tracker[V]) Add(e *models.Entry[V]) {
	if _, loaded := t.trackedKeys.Swap(e.Key, e); !loaded {
		t.count.Inc()
	}
}

// Load returns the tracked entry for key.
func (t *Tracker[V]) Load(key string) (*models.Entry[V], bool) {
	v, ok := t.trackedKeys.Load(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*models.Entry[V])
	if !ok {
		t.logger.Warn("Invalid entry type in Tracker", zap.String("key", key))
		return nil, false
	}
	return e, true
}

// Remove removes a key from the tracker.
func (t *Tracker[V]) Remove(key string) bool {
	_, ok := t.trackedKeys.LoadAndDelete(key)
	if ok {
		t.count.Dec()
	}
	return ok
}

// RemoveEntry removes key only while it still maps to e.
func (t *Tracker[V]) RemoveEntry(e *models.Entry[V]) bool {
	if t.trackedKeys.CompareAndDelete(e.Key, e) {
		t.count.Dec()
		return true
	}
	return false
}

// Range iterates over all tracked entries.
func (t *Tracker[V]) Range(f func(e *models.Entry[V]) bool) {
	t.trackedKeys.Range(func(k, v any) bool {
		if e, ok := v.(*models.Entry[V]); ok {
			return f(e)
		}
		t.logger.Warn("Invalid key type in Tracker", zap.Any("key", k))
		return true
	})
}

// Len returns the number of tracked keys.
func (t *Tracker[V]) Len() int {
	return int(t.count.Load())
}

// Reset forgets every key.
func (t *Tracker[V]) Reset() {
	t.trackedKeys.Range(func(k, _ any) bool {
		t.Remove(k.(string))
		return true
	})
}
