package cache

import "sync/atomic"

type CacheMetrics struct {
	hits    int64
	misses  int64
	sets    int64
	deletes int64
	errors  int64
}

type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{}
}

func (m *CacheMetrics) RecordHit()    { atomic.AddInt64(&m.hits, 1) }
func (m *CacheMetrics) RecordMiss()   { atomic.AddInt64(&m.misses, 1) }
func (m *CacheMetrics) RecordSet()    { atomic.AddInt64(&m.sets, 1) }
func (m *CacheMetrics) RecordDelete() { atomic.AddInt64(&m.deletes, 1) }
func (m *CacheMetrics) RecordError()  { atomic.AddInt64(&m.errors, 1) }

func (m *CacheMetrics) GetStats() CacheStats {
	return CacheStats{
		Hits:    atomic.LoadInt64(&m.hits),
		Misses:  atomic.LoadInt64(&m.misses),
		Sets:    atomic.LoadInt64(&m.sets),
		Deletes: atomic.LoadInt64(&m.deletes),
		Errors:  atomic.LoadInt64(&m.errors),
	}
}

// HitRate returns the hit percentage over all lookups, 0 when none happened.
func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

func (m *CacheMetrics) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.sets, 0)
	atomic.StoreInt64(&m.deletes, 0)
	atomic.StoreInt64(&m.errors, 0)
}
