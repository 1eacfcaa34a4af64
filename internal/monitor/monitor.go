package monitor

import (
	"iter"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
)

// TimeRange 時間範圍，兩端皆包含
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End].
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Summary 監控聚合結果
type Summary struct {
	Count             int     `json:"count"`
	HitRate           float64 `json:"hitRate"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	P95ResponseTimeMs float64 `json:"p95ResponseTimeMs"`
	ErrorCount        int     `json:"errorCount"`
	ErrorRate         float64 `json:"errorRate"`
	LastMemoryUsage   float64 `json:"lastMemoryUsage"`
	Dropped           uint64  `json:"dropped"`
}

// Monitor 記錄每次操作的效能資料。歷史紀錄為固定大小的環形緩衝，滿了丟棄最舊的。
type Monitor struct {
	mu      sync.RWMutex
	records []models.MetricRecord
	head    int // 最舊紀錄的位置
	count   int
	last    time.Time

	dropped atomic.Uint64

	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
	registry prometheus.Registerer
	metrics  *monitorMetrics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRegistry exports metrics to reg, overriding MonitorConfig.Registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(m *Monitor) {
		m.registry = reg
	}
}

// WithIDGenerator replaces the uuid record ID generator.
func WithIDGenerator(f func() string) Option {
	return func(m *Monitor) {
		if f != nil {
			m.newID = f
		}
	}
}

// New creates a monitor bounded by cfg.MonitorConfig.HistoryLimit.
func New(cfg *config.Config, opts ...Option) (*Monitor, error) {
	limit := cfg.MonitorConfig.HistoryLimit
	if limit < 1 {
		return nil, config.ErrHistoryLimitZero
	}

	m := &Monitor{
		records:  make([]models.MetricRecord, limit),
		now:      cfg.Clock,
		newID:    uuid.NewString,
		logger:   cfg.Logger,
		registry: cfg.MonitorConfig.Registry,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.registry != nil {
		metrics, err := newMonitorMetrics(m.registry, cfg.MonitorConfig.Namespace)
		if err != nil {
			return nil, err
		}
		m.metrics = metrics
	}

	return m, nil
}

// RecordMetric appends a record. It never fails; malformed numbers become 0.
func (m *Monitor) RecordMetric(in models.MetricInput) {
	rec := models.MetricRecord{
		ID:                  m.newID(),
		OperationLabel:      in.OperationLabel,
		ResponseTimeMs:      sanitize(in.ResponseTimeMs),
		CacheHit:            in.CacheHit,
		MemoryUsageSnapshot: sanitize(in.MemoryUsageSnapshot),
		CPUUsageSnapshot:    sanitize(in.CPUUsageSnapshot),
		ErrorCount:          max(in.ErrorCount, 0),
	}

	m.mu.Lock()
	ts := m.now()
	// 時鐘回撥時沿用上一筆的時間，維持非遞減
	if ts.Before(m.last) {
		ts = m.last
	}
	m.last = ts
	rec.Timestamp = ts

	capacity := len(m.records)
	dropped := false
	if m.count < capacity {
		m.records[(m.head+m.count)%capacity] = rec
		m.count++
	} else {
		m.records[m.head] = rec
		m.head = (m.head + 1) % capacity
		m.dropped.Inc()
		dropped = true
	}
	size := m.count
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.observe(rec, size, dropped)
	}
}

// Metrics returns the retained records in insertion order, filtered to r when
// r is non-nil. The sequence walks a snapshot taken now and can be ranged
// over more than once.
func (m *Monitor) Metrics(r *TimeRange) iter.Seq[models.MetricRecord] {
	snapshot := m.snapshot()
	var window *TimeRange
	if r != nil {
		w := *r
		window = &w
	}

	return func(yield func(models.MetricRecord) bool) {
		for _, rec := range snapshot {
			if window != nil && !window.Contains(rec.Timestamp) {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// AverageResponseTime returns the mean response time, 0 when empty.
func (m *Monitor) AverageResponseTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return 0
	}
	var total float64
	m.eachLocked(func(rec models.MetricRecord) {
		total += rec.ResponseTimeMs
	})
	return total / float64(m.count)
}

// CacheHitRate returns the fraction of retained records that were hits, 0 when empty.
func (m *Monitor) CacheHitRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return 0
	}
	hits := 0
	m.eachLocked(func(rec models.MetricRecord) {
		if rec.CacheHit {
			hits++
		}
	})
	return float64(hits) / float64(m.count)
}

// ErrorRate returns the fraction of retained records with at least one error.
func (m *Monitor) ErrorRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return 0
	}
	failed := 0
	m.eachLocked(func(rec models.MetricRecord) {
		if rec.ErrorCount > 0 {
			failed++
		}
	})
	return float64(failed) / float64(m.count)
}

// Len 目前保留的紀錄數
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Capacity is the history bound.
func (m *Monitor) Capacity() int {
	return len(m.records)
}

// ClearMetrics drops all retained records.
func (m *Monitor) ClearMetrics() {
	m.mu.Lock()
	clear(m.records)
	m.head = 0
	m.count = 0
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.historySize.Set(0)
	}
	m.logger.Debug("metrics cleared")
}

// Summary aggregates the retained records in one pass over a snapshot.
func (m *Monitor) Summary() Summary {
	snapshot := m.snapshot()
	s := Summary{Count: len(snapshot), Dropped: m.dropped.Load()}
	if s.Count == 0 {
		return s
	}

	latencies := make([]float64, 0, len(snapshot))
	var total float64
	hits, failed := 0, 0
	for _, rec := range snapshot {
		total += rec.ResponseTimeMs
		latencies = append(latencies, rec.ResponseTimeMs)
		if rec.CacheHit {
			hits++
		}
		if rec.ErrorCount > 0 {
			failed++
		}
		s.ErrorCount += rec.ErrorCount
	}

	n := float64(s.Count)
	s.HitRate = float64(hits) / n
	s.AvgResponseTimeMs = total / n
	s.ErrorRate = float64(failed) / n
	s.P95ResponseTimeMs = percentile(latencies, 0.95)
	s.LastMemoryUsage = snapshot[len(snapshot)-1].MemoryUsageSnapshot
	return s
}

func (m *Monitor) snapshot() []models.MetricRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.MetricRecord, 0, m.count)
	m.eachLocked(func(rec models.MetricRecord) {
		out = append(out, rec)
	})
	return out
}

func (m *Monitor) eachLocked(f func(models.MetricRecord)) {
	capacity := len(m.records)
	for i := 0; i < m.count; i++ {
		f(m.records[(m.head+i)%capacity])
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// percentile 使用最近排名法
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	rank := int(math.Ceil(p*float64(len(values)))) - 1
	rank = min(max(rank, 0), len(values)-1)
	return values[rank]
}
