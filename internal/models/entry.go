package models

import "time"

// Entry 定義快取項目
type Entry[V any] struct {
	Key            string
	Value          V
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	HitCount       uint64
	SizeBytes      int
	// Seq 插入順序，用於淘汰時的最後比較
	Seq uint64
}

// NewEntry creates an entry created and last accessed at now.
func NewEntry[V any](key string, value V, now time.Time, ttl time.Duration, seq uint64) *Entry[V] {
	return &Entry[V]{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		Seq:            seq,
	}
}

// IsExpired 到期時間當下即視為過期
func (e *Entry[V]) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Touch records a hit at now.
func (e *Entry[V]) Touch(now time.Time) {
	e.HitCount++
	e.LastAccessedAt = now
}

// OlderThan reports whether e should be evicted before other.
func (e *Entry[V]) OlderThan(other *Entry[V]) bool {
	if !e.LastAccessedAt.Equal(other.LastAccessedAt) {
		return e.LastAccessedAt.Before(other.LastAccessedAt)
	}
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.Seq < other.Seq
}

// Info returns the metadata of e without its value.
func (e *Entry[V]) Info() EntryInfo {
	return EntryInfo{
		Key:            e.Key,
		CreatedAt:      e.CreatedAt,
		ExpiresAt:      e.ExpiresAt,
		LastAccessedAt: e.LastAccessedAt,
		HitCount:       e.HitCount,
		SizeBytes:      e.SizeBytes,
	}
}

// EntryInfo 項目的中繼資料
type EntryInfo struct {
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	HitCount       uint64    `json:"hitCount"`
	SizeBytes      int       `json:"sizeBytes"`
}
