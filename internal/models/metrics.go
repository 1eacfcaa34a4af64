package models

import (
	"time"

	"go.uber.org/atomic"
)

// MetricRecord 一次快取操作的效能紀錄
type MetricRecord struct {
	ID                  string    `json:"id"`
	OperationLabel      string    `json:"operationLabel"`
	ResponseTimeMs      float64   `json:"responseTimeMs"`
	CacheHit            bool      `json:"cacheHit"`
	MemoryUsageSnapshot float64   `json:"memoryUsage"`
	CPUUsageSnapshot    float64   `json:"cpuUsage"`
	ErrorCount          int       `json:"errorCount"`
	Timestamp           time.Time `json:"timestamp"`
}

// MetricInput is a MetricRecord before the monitor assigns ID and Timestamp.
type MetricInput struct {
	OperationLabel      string
	ResponseTimeMs      float64
	CacheHit            bool
	MemoryUsageSnapshot float64
	CPUUsageSnapshot    float64
	ErrorCount          int
}

// Counters 定義指標統計
type Counters struct {
	Hits        atomic.Uint64
	Misses      atomic.Uint64
	Evictions   atomic.Uint64
	Expirations atomic.Uint64
}

// NewCounters 創建新的 Counters 實例
func NewCounters() *Counters {
	return &Counters{}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.Hits.Store(0)
	c.Misses.Store(0)
	c.Evictions.Store(0)
	c.Expirations.Store(0)
}
