package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"goflare.io/perfcache/internal/models"
)

func TestTracker(t *testing.T) {
	tr := NewTracker[int](zap.NewNop())
	now := time.Now()

	a1 := models.NewEntry("a", 1, now, time.Minute, 1)
	a2 := models.NewEntry("a", 2, now, time.Minute, 2)
	b := models.NewEntry("b", 3, now, time.Minute, 3)

	tr.Add(a1)
	tr.Add(a2)
	tr.Add(b)
	assert.Equal(t, 2, tr.Len())

	got, ok := tr.Load("a")
	assert.True(t, ok)
	assert.Same(t, a2, got)

	// 舊項目的淘汰通知不影響新項目
	assert.False(t, tr.RemoveEntry(a1))
	assert.Equal(t, 2, tr.Len())
	assert.True(t, tr.RemoveEntry(a2))
	assert.Equal(t, 1, tr.Len())

	assert.True(t, tr.Remove("b"))
	assert.False(t, tr.Remove("b"))
	assert.Zero(t, tr.Len())

	tr.Add(a1)
	tr.Add(b)
	tr.Reset()
	assert.Zero(t, tr.Len())
	_, ok = tr.Load("a")
	assert.False(t, ok)
}
