package monitor

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"goflare.io/perfcache/internal/models"
)

// monitorMetrics holds Prometheus metrics mirrored from recorded operations.
type monitorMetrics struct {
	operations   *prometheus.CounterVec
	responseTime *prometheus.HistogramVec
	memoryUsage  prometheus.Gauge
	historySize  prometheus.Gauge
	dropped      prometheus.Counter
}

func newMonitorMetrics(reg prometheus.Registerer, namespace string) (*monitorMetrics, error) {
	m := &monitorMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of recorded cache operations by result",
		}, []string{"operation", "result"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "response_time_seconds",
			Help:      "Response time of recorded cache operations",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation"}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "memory_usage",
			Help:      "Store size reported with the latest recorded operation",
		}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "history_size",
			Help:      "Number of metric records currently retained",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "dropped_records_total",
			Help:      "Total number of metric records dropped from the bounded history",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.responseTime, m.memoryUsage, m.historySize, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register monitor metrics: %w", err)
		}
	}

	return m, nil
}

func (m *monitorMetrics) observe(rec models.MetricRecord, size int, dropped bool) {
	op := operationName(rec.OperationLabel)

	result := "miss"
	switch {
	case rec.ErrorCount > 0:
		result = "error"
	case rec.CacheHit:
		result = "hit"
	}

	m.operations.WithLabelValues(op, result).Inc()
	m.responseTime.WithLabelValues(op).Observe(rec.ResponseTimeMs / 1000)
	m.memoryUsage.Set(rec.MemoryUsageSnapshot)
	m.historySize.Set(float64(size))
	if dropped {
		m.dropped.Inc()
	}
}

// operationName 取出 "cache:get:<key>" 中的操作名稱，避免以 key 作為標籤
func operationName(label string) string {
	parts := strings.SplitN(label, ":", 3)
	if len(parts) > 1 {
		return parts[1]
	}
	if label == "" {
		return "unknown"
	}
	return label
}
