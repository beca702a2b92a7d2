package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestViewMonitor_Stats(t *testing.T) {
	m := NewViewMonitor()

	m.Record("dashboard", 5*time.Millisecond, true)
	m.Record("dashboard", 15*time.Millisecond, true)
	m.Record("timeseries", 250*time.Millisecond, false)

	stats := m.Stats()
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.CacheHits)
	assert.EqualValues(t, 1, stats.CacheMisses)
	assert.EqualValues(t, 1, stats.SlowViews)
	assert.Equal(t, 66.67, stats.CacheHitRate)
	assert.Equal(t, 10.0, stats.AvgCachedMs)
	assert.Equal(t, 15.0, stats.P95CachedMs)
	assert.Equal(t, 250.0, stats.P95ComputedMs)
	assert.Equal(t, map[string]int64{"dashboard": 2, "timeseries": 1}, stats.ByKind)
	assert.Empty(t, stats.Issues)
}

func TestViewMonitor_FlagsLowHitRate(t *testing.T) {
	m := NewViewMonitor()
	for i := 0; i < 150; i++ {
		m.Record("export", time.Millisecond, i%2 == 0)
	}

	stats := m.Stats()
	assert.Equal(t, 50.0, stats.CacheHitRate)
	assert.Len(t, stats.Issues, 1)
}

func TestViewMonitor_KeepsRecentSamples(t *testing.T) {
	m := NewViewMonitor()
	for i := 0; i < viewSampleLimit+50; i++ {
		m.Record("dashboard", time.Millisecond, true)
	}

	assert.Len(t, m.cached, viewSampleLimit)
	assert.EqualValues(t, viewSampleLimit+50, m.Stats().CacheHits)
}
