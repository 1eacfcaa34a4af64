package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/perfcache/internal/config"
)

func actions(recs []Recommendation) []Action {
	out := make([]Action, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}

func TestEfficiencyScoreHealthy(t *testing.T) {
	a := New(config.DefaultAdvisorConfig())
	s := Snapshot{HitRate: 0.9, AvgResponseTimeMs: 100, MemoryUsagePercent: 50}

	assert.InDelta(t, 75.0, a.EfficiencyScore(s), 1e-9)
	assert.Empty(t, a.Recommend(s))
}

func TestEfficiencyScoreClamped(t *testing.T) {
	a := New(config.DefaultAdvisorConfig())

	assert.InDelta(t, 100.0, a.EfficiencyScore(Snapshot{HitRate: 1}), 1e-9)
	assert.InDelta(t, 100.0, a.EfficiencyScore(Snapshot{HitRate: 2}), 1e-9)
	assert.Zero(t, a.EfficiencyScore(Snapshot{HitRate: 0, AvgResponseTimeMs: 900, MemoryUsagePercent: 150}))
	assert.Zero(t, a.EfficiencyScore(Snapshot{HitRate: -1, AvgResponseTimeMs: 500, MemoryUsagePercent: 100}))
}

func TestRecommendThresholds(t *testing.T) {
	a := New(config.DefaultAdvisorConfig())

	tests := []struct {
		name string
		s    Snapshot
		want []Action
	}{
		{"low hit rate", Snapshot{HitRate: 0.69, AvgResponseTimeMs: 0, MemoryUsagePercent: 0}, []Action{ActionEnablePrefetch}},
		{"hit rate at threshold", Snapshot{HitRate: 0.7, AvgResponseTimeMs: 0, MemoryUsagePercent: 0}, nil},
		{"slow responses", Snapshot{HitRate: 1, AvgResponseTimeMs: 201, MemoryUsagePercent: 0}, []Action{ActionEnableCompression}},
		{"response at threshold", Snapshot{HitRate: 1, AvgResponseTimeMs: 200, MemoryUsagePercent: 0}, nil},
		{"memory pressure", Snapshot{HitRate: 1, AvgResponseTimeMs: 0, MemoryUsagePercent: 81}, []Action{ActionRunCleanup}},
		{"memory at threshold", Snapshot{HitRate: 1, AvgResponseTimeMs: 0, MemoryUsagePercent: 80}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := actions(a.Recommend(tt.s))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecommendRanking(t *testing.T) {
	a := New(config.DefaultAdvisorConfig())
	s := Snapshot{HitRate: 0.1, AvgResponseTimeMs: 400, MemoryUsagePercent: 95}

	// score = 4 + 6 + 1.5
	require.Less(t, a.EfficiencyScore(s), 60.0)

	recs := a.Recommend(s)
	assert.Equal(t, []Action{
		ActionEnableCompression,
		ActionEnablePrefetch,
		ActionWarmCache,
		ActionRunCleanup,
	}, actions(recs))

	for _, r := range recs {
		assert.NotEmpty(t, r.Description)
		assert.Positive(t, r.EstimatedImprovement)
	}
}

func TestWarmCacheOnlyFromScore(t *testing.T) {
	a := New(config.AdvisorConfig{MinHitRate: 0.5})
	s := Snapshot{HitRate: 0.55, AvgResponseTimeMs: 200, MemoryUsagePercent: 80}

	// 22 + 18 + 6 = 46
	assert.InDelta(t, 46.0, a.EfficiencyScore(s), 1e-9)
	assert.Equal(t, []Action{ActionWarmCache}, actions(a.Recommend(s)))
}

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot(0.5, 10, 25, 100)
	assert.Equal(t, 25.0, s.MemoryUsagePercent)
	assert.Zero(t, NewSnapshot(0.5, 10, 25, 0).MemoryUsagePercent)
}

func TestReport(t *testing.T) {
	a := New(config.DefaultAdvisorConfig())
	s := Snapshot{HitRate: 0.9, AvgResponseTimeMs: 100, MemoryUsagePercent: 50}

	r := a.Report(s)
	assert.InDelta(t, 75.0, r.Score, 1e-9)
	assert.Empty(t, r.Recommendations)
	assert.Equal(t, s, r.Snapshot)
}
