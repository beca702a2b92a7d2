package service

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	viewSampleLimit = 1000
	slowViewLimit   = 100 * time.Millisecond
	minHitRate      = 70.0
)

// ViewMonitor tracks latency and cache effectiveness of project views
type ViewMonitor struct {
	mu       sync.RWMutex
	cached   []time.Duration
	computed []time.Duration
	hits     int64
	misses   int64
	slow     int64
	byKind   map[string]int64
}

// NewViewMonitor creates a monitor keeping the most recent samples
func NewViewMonitor() *ViewMonitor {
	return &ViewMonitor{
		cached:   make([]time.Duration, 0, viewSampleLimit),
		computed: make([]time.Duration, 0, viewSampleLimit),
		byKind:   make(map[string]int64),
	}
}

// Record adds one served view
func (m *ViewMonitor) Record(kind string, d time.Duration, fromCache bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byKind[kind]++
	if fromCache {
		m.hits++
		m.cached = appendSample(m.cached, d)
	} else {
		m.misses++
		m.computed = appendSample(m.computed, d)
	}
	if d > slowViewLimit {
		m.slow++
	}
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > viewSampleLimit {
		samples = samples[len(samples)-viewSampleLimit:]
	}
	return samples
}

// ViewStats summarizes served views
type ViewStats struct {
	Total         int64            `json:"total"`
	CacheHits     int64            `json:"cacheHits"`
	CacheMisses   int64            `json:"cacheMisses"`
	SlowViews     int64            `json:"slowViews"`
	CacheHitRate  float64          `json:"cacheHitRate"`
	AvgCachedMs   float64          `json:"avgCachedMs"`
	AvgComputedMs float64          `json:"avgComputedMs"`
	P95CachedMs   float64          `json:"p95CachedMs"`
	P95ComputedMs float64          `json:"p95ComputedMs"`
	ByKind        map[string]int64 `json:"byKind"`
	Issues        []string         `json:"issues"`
}

// Stats returns the current statistics along with any threshold violations
func (m *ViewMonitor) Stats() ViewStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ViewStats{
		Total:       m.hits + m.misses,
		CacheHits:   m.hits,
		CacheMisses: m.misses,
		SlowViews:   m.slow,
		ByKind:      make(map[string]int64, len(m.byKind)),
		Issues:      []string{},
	}
	for k, v := range m.byKind {
		stats.ByKind[k] = v
	}
	if stats.Total > 0 {
		stats.CacheHitRate = round2(float64(m.hits) / float64(stats.Total) * 100)
	}
	stats.AvgCachedMs, stats.P95CachedMs = summarize(m.cached)
	stats.AvgComputedMs, stats.P95ComputedMs = summarize(m.computed)

	if stats.P95CachedMs > float64(slowViewLimit.Milliseconds()) {
		stats.Issues = append(stats.Issues, fmt.Sprintf("p95 cached view time %.2fms exceeds %dms", stats.P95CachedMs, slowViewLimit.Milliseconds()))
	}
	if stats.Total > 100 && stats.CacheHitRate < minHitRate {
		stats.Issues = append(stats.Issues, fmt.Sprintf("cache hit rate %.2f%% is below %.0f%%, consider a longer CACHE_TTL", stats.CacheHitRate, minHitRate))
	}
	return stats
}

// summarize returns the mean and p95 of samples in milliseconds
func summarize(samples []time.Duration) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	avg := float64(total) / float64(len(sorted)) / float64(time.Millisecond)
	p95 := sorted[min(int(float64(len(sorted))*0.95), len(sorted)-1)]
	return round2(avg), round2(float64(p95) / float64(time.Millisecond))
}
