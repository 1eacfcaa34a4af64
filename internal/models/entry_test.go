package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEntry("k", 1, now, time.Second, 1)

	assert.False(t, e.IsExpired(now))
	assert.False(t, e.IsExpired(now.Add(999*time.Millisecond)))
	assert.True(t, e.IsExpired(now.Add(time.Second)))
}

func TestEntryTouch(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEntry("k", "v", now, time.Minute, 1)

	e.Touch(now.Add(time.Second))
	e.Touch(now.Add(2 * time.Second))

	info := e.Info()
	assert.Equal(t, uint64(2), info.HitCount)
	assert.Equal(t, now.Add(2*time.Second), info.LastAccessedAt)
	assert.Equal(t, now, info.CreatedAt)
}

func TestEntryOlderThan(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewEntry("a", 0, now, time.Minute, 1)
	b := NewEntry("b", 0, now, time.Minute, 2)

	// 全部相同時比較插入順序
	assert.True(t, a.OlderThan(b))
	assert.False(t, b.OlderThan(a))

	a.Touch(now.Add(time.Second))
	assert.True(t, b.OlderThan(a))

	c := NewEntry("c", 0, now.Add(-time.Second), time.Minute, 3)
	c.LastAccessedAt = b.LastAccessedAt
	assert.True(t, c.OlderThan(b))
}

func TestCountersReset(t *testing.T) {
	c := NewCounters()
	c.Hits.Inc()
	c.Misses.Add(2)
	c.Evictions.Inc()
	c.Expirations.Inc()

	c.Reset()
	assert.Zero(t, c.Hits.Load())
	assert.Zero(t, c.Misses.Load())
	assert.Zero(t, c.Evictions.Load())
	assert.Zero(t, c.Expirations.Load())
}
