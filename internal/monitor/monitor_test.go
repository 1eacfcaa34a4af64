package monitor

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/perfcache/internal/config"
	"goflare.io/perfcache/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newMonitor(t *testing.T, limit int, opts ...Option) (*Monitor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	cfg, err := config.NewConfig(config.WithHistoryLimit(limit), config.WithClock(clock.Now))
	require.NoError(t, err)
	m, err := New(cfg, opts...)
	require.NoError(t, err)
	return m, clock
}

func TestRecordMetricAssignsIDAndTimestamp(t *testing.T) {
	m, clock := newMonitor(t, 10)

	m.RecordMetric(models.MetricInput{OperationLabel: "cache:get:a", ResponseTimeMs: 1.5, CacheHit: true})
	clock.Advance(time.Second)
	m.RecordMetric(models.MetricInput{OperationLabel: "cache:set:a", ResponseTimeMs: 2})

	records := slices.Collect(m.Metrics(nil))
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, epoch, records[0].Timestamp)
	assert.Equal(t, epoch.Add(time.Second), records[1].Timestamp)
	assert.Equal(t, "cache:get:a", records[0].OperationLabel)
}

func TestTimestampsNeverDecrease(t *testing.T) {
	m, clock := newMonitor(t, 10)

	m.RecordMetric(models.MetricInput{})
	clock.Advance(-time.Minute)
	m.RecordMetric(models.MetricInput{})

	records := slices.Collect(m.Metrics(nil))
	require.Len(t, records, 2)
	assert.False(t, records[1].Timestamp.Before(records[0].Timestamp))
}

func TestRecordMetricNormalizesInput(t *testing.T) {
	m, _ := newMonitor(t, 10)

	m.RecordMetric(models.MetricInput{
		ResponseTimeMs:      math.NaN(),
		MemoryUsageSnapshot: math.Inf(1),
		CPUUsageSnapshot:    -3,
		ErrorCount:          -1,
	})

	records := slices.Collect(m.Metrics(nil))
	require.Len(t, records, 1)
	assert.Zero(t, records[0].ResponseTimeMs)
	assert.Zero(t, records[0].MemoryUsageSnapshot)
	assert.Zero(t, records[0].CPUUsageSnapshot)
	assert.Zero(t, records[0].ErrorCount)
	assert.Zero(t, m.AverageResponseTime())
}

func TestEmptyAggregates(t *testing.T) {
	m, _ := newMonitor(t, 10)

	assert.Zero(t, m.AverageResponseTime())
	assert.Zero(t, m.CacheHitRate())
	assert.Zero(t, m.ErrorRate())
	assert.Equal(t, Summary{}, m.Summary())
	assert.Empty(t, slices.Collect(m.Metrics(nil)))
}

func TestAggregates(t *testing.T) {
	m, _ := newMonitor(t, 100)

	// 7 次命中，3 次未命中
	for i := 0; i < 10; i++ {
		m.RecordMetric(models.MetricInput{
			OperationLabel: fmt.Sprintf("cache:get:k%d", i),
			ResponseTimeMs: float64(i + 1),
			CacheHit:       i < 7,
		})
	}

	assert.InDelta(t, 0.7, m.CacheHitRate(), 1e-9)
	assert.InDelta(t, 5.5, m.AverageResponseTime(), 1e-9)

	m.RecordMetric(models.MetricInput{OperationLabel: "cache:load:x", ResponseTimeMs: 100, ErrorCount: 1})
	s := m.Summary()
	assert.Equal(t, 11, s.Count)
	assert.Equal(t, 1, s.ErrorCount)
	assert.InDelta(t, 1.0/11, s.ErrorRate, 1e-9)
	assert.Equal(t, 100.0, s.P95ResponseTimeMs)
}

func TestBoundedHistoryDropsOldest(t *testing.T) {
	m, clock := newMonitor(t, 5)

	var earliest []time.Time
	for i := 0; i < 12; i++ {
		m.RecordMetric(models.MetricInput{ResponseTimeMs: float64(i)})
		clock.Advance(time.Second)

		first, ok := firstRecord(m)
		require.True(t, ok)
		earliest = append(earliest, first.Timestamp)
		assert.LessOrEqual(t, m.Len(), 5)
	}

	assert.Equal(t, 5, m.Len())
	for i := 5; i < len(earliest); i++ {
		assert.True(t, earliest[i].After(earliest[i-1]), "earliest timestamp should advance once full")
	}

	records := slices.Collect(m.Metrics(nil))
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, float64(7+i), rec.ResponseTimeMs)
	}
	assert.Equal(t, uint64(7), m.Summary().Dropped)
}

func firstRecord(m *Monitor) (models.MetricRecord, bool) {
	for rec := range m.Metrics(nil) {
		return rec, true
	}
	return models.MetricRecord{}, false
}

func TestMetricsTimeRangeInclusive(t *testing.T) {
	m, clock := newMonitor(t, 10)

	for i := 0; i < 5; i++ {
		m.RecordMetric(models.MetricInput{ResponseTimeMs: float64(i)})
		clock.Advance(time.Second)
	}

	r := &TimeRange{Start: epoch.Add(time.Second), End: epoch.Add(3 * time.Second)}
	var got []float64
	for rec := range m.Metrics(r) {
		got = append(got, rec.ResponseTimeMs)
	}
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestMetricsIsRestartableSnapshot(t *testing.T) {
	m, _ := newMonitor(t, 10)
	m.RecordMetric(models.MetricInput{ResponseTimeMs: 1})
	m.RecordMetric(models.MetricInput{ResponseTimeMs: 2})

	seq := m.Metrics(nil)
	m.RecordMetric(models.MetricInput{ResponseTimeMs: 3})

	assert.Len(t, slices.Collect(seq), 2)
	assert.Len(t, slices.Collect(seq), 2)
	assert.Len(t, slices.Collect(m.Metrics(nil)), 3)
}

func TestClearMetrics(t *testing.T) {
	m, _ := newMonitor(t, 3)
	for i := 0; i < 5; i++ {
		m.RecordMetric(models.MetricInput{CacheHit: true})
	}

	m.ClearMetrics()
	assert.Zero(t, m.Len())
	assert.Zero(t, m.CacheHitRate())

	m.RecordMetric(models.MetricInput{ResponseTimeMs: 4})
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 4.0, m.AverageResponseTime())
}

func TestCustomIDGenerator(t *testing.T) {
	n := 0
	m, _ := newMonitor(t, 3, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}))

	m.RecordMetric(models.MetricInput{})
	first, ok := firstRecord(m)
	require.True(t, ok)
	assert.Equal(t, "rec-1", first.ID)
}

func TestNewRejectsZeroHistory(t *testing.T) {
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	cfg.MonitorConfig.HistoryLimit = 0

	_, err = New(cfg)
	assert.ErrorIs(t, err, config.ErrHistoryLimitZero)
}

func TestPrometheusExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, _ := newMonitor(t, 2, WithRegistry(reg))

	m.RecordMetric(models.MetricInput{OperationLabel: "cache:get:a", CacheHit: true, MemoryUsageSnapshot: 3})
	m.RecordMetric(models.MetricInput{OperationLabel: "cache:get:b"})
	m.RecordMetric(models.MetricInput{OperationLabel: "cache:load:c", ErrorCount: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.operations.WithLabelValues("get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.operations.WithLabelValues("get", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.operations.WithLabelValues("load", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.metrics.memoryUsage))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.historySize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.dropped))

	// 同一個 registry 重複註冊會失敗
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	_, err = New(cfg, WithRegistry(reg))
	assert.Error(t, err)
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "get", operationName("cache:get:user:1"))
	assert.Equal(t, "clear", operationName("cache:clear"))
	assert.Equal(t, "custom", operationName("custom"))
	assert.Equal(t, "unknown", operationName(""))
}

func TestConcurrentRecording(t *testing.T) {
	m, _ := newMonitor(t, 50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.RecordMetric(models.MetricInput{ResponseTimeMs: 1, CacheHit: i%2 == 0})
				_ = m.CacheHitRate()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	assert.Equal(t, 1.0, m.AverageResponseTime())
}
