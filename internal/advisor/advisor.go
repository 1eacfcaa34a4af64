// Package advisor classifies cache state and recommends tuning actions.
// It never mutates the cache or the monitor.
package advisor

import (
	"math"
	"sort"

	"goflare.io/perfcache/internal/config"
)

// Action 建議的操作
type Action string

const (
	ActionEnablePrefetch    Action = "enable_prefetch"
	ActionEnableCompression Action = "enable_compression"
	ActionRunCleanup        Action = "run_cleanup"
	ActionWarmCache         Action = "warm_cache"
)

// Priority 建議的優先順序
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Snapshot 計算建議所需的統計值
type Snapshot struct {
	HitRate            float64 `json:"hitRate"`
	AvgResponseTimeMs  float64 `json:"avgResponseTimeMs"`
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
}

// NewSnapshot builds a Snapshot, deriving the memory percentage from size/maxSize.
func NewSnapshot(hitRate, avgResponseTimeMs float64, size, maxSize int) Snapshot {
	var mem float64
	if maxSize > 0 {
		mem = float64(size) / float64(maxSize) * 100
	}
	return Snapshot{
		HitRate:            hitRate,
		AvgResponseTimeMs:  avgResponseTimeMs,
		MemoryUsagePercent: mem,
	}
}

// Recommendation 一條優化建議
type Recommendation struct {
	Action               Action   `json:"action"`
	Description          string   `json:"description"`
	Priority             Priority `json:"priority"`
	EstimatedImprovement float64  `json:"estimatedImprovement"`
}

// Report 評分、建議與輸入快照
type Report struct {
	Score           float64          `json:"score"`
	Recommendations []Recommendation `json:"recommendations"`
	Snapshot        Snapshot         `json:"snapshot"`
	Applied         []Action         `json:"applied,omitempty"`
}

// Advisor applies fixed thresholds to a Snapshot.
type Advisor struct {
	cfg config.AdvisorConfig
}

// New creates an Advisor. Zero thresholds fall back to the defaults.
func New(cfg config.AdvisorConfig) *Advisor {
	def := config.DefaultAdvisorConfig()
	if cfg.MinHitRate <= 0 {
		cfg.MinHitRate = def.MinHitRate
	}
	if cfg.MaxAvgResponseTimeMs <= 0 {
		cfg.MaxAvgResponseTimeMs = def.MaxAvgResponseTimeMs
	}
	if cfg.MaxMemoryUsageRatio <= 0 {
		cfg.MaxMemoryUsageRatio = def.MaxMemoryUsageRatio
	}
	if cfg.MinEfficiencyScore <= 0 {
		cfg.MinEfficiencyScore = def.MinEfficiencyScore
	}
	if cfg.ResponseTimeCeilingMs <= 0 {
		cfg.ResponseTimeCeilingMs = def.ResponseTimeCeilingMs
	}
	return &Advisor{cfg: cfg}
}

// EfficiencyScore weighs hit rate 40, latency 30 and free capacity 30, clamped to [0, 100].
func (a *Advisor) EfficiencyScore(s Snapshot) float64 {
	ceiling := a.cfg.ResponseTimeCeilingMs
	score := s.HitRate*40 +
		math.Max(0, (ceiling-s.AvgResponseTimeMs)/ceiling)*30 +
		math.Max(0, (100-s.MemoryUsagePercent)/100)*30

	if math.IsNaN(score) {
		return 0
	}
	return math.Min(100, math.Max(0, score))
}

// Recommend returns the triggered recommendations, high priority first, then
// by estimated improvement.
func (a *Advisor) Recommend(s Snapshot) []Recommendation {
	score := a.EfficiencyScore(s)

	var recs []Recommendation
	if s.HitRate < a.cfg.MinHitRate {
		recs = append(recs, Recommendation{
			Action:               ActionEnablePrefetch,
			Description:          "Cache hit rate is low; prefetch frequently accessed keys",
			Priority:             PriorityHigh,
			EstimatedImprovement: 25,
		})
	}
	if s.AvgResponseTimeMs > a.cfg.MaxAvgResponseTimeMs {
		recs = append(recs, Recommendation{
			Action:               ActionEnableCompression,
			Description:          "Average response time is high; enable compression",
			Priority:             PriorityHigh,
			EstimatedImprovement: 30,
		})
	}
	if s.MemoryUsagePercent/100 > a.cfg.MaxMemoryUsageRatio {
		recs = append(recs, Recommendation{
			Action:               ActionRunCleanup,
			Description:          "Cache is close to capacity; purge expired entries",
			Priority:             PriorityMedium,
			EstimatedImprovement: 15,
		})
	}
	if score < a.cfg.MinEfficiencyScore {
		recs = append(recs, Recommendation{
			Action:               ActionWarmCache,
			Description:          "Overall efficiency is low; warm the cache with known keys",
			Priority:             PriorityMedium,
			EstimatedImprovement: 20,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority.rank() < recs[j].Priority.rank()
		}
		return recs[i].EstimatedImprovement > recs[j].EstimatedImprovement
	})
	return recs
}

// Report combines score and recommendations for s.
func (a *Advisor) Report(s Snapshot) Report {
	return Report{
		Score:           a.EfficiencyScore(s),
		Recommendations: a.Recommend(s),
		Snapshot:        s,
	}
}
