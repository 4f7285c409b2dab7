package replacer

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHistogramPercentiles tests percentile interpolation
func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}

	assert.Equal(t, 100, h.Count())
	assert.InDelta(t, 50.5, h.Percentile(50), 1e-9)
	assert.InDelta(t, 1.0, h.Percentile(0), 1e-9)
	assert.InDelta(t, 100.0, h.Percentile(100), 1e-9)

	snap := h.Snapshot()
	assert.Equal(t, 100, snap.Count)
	assert.Equal(t, 1.0, snap.Min)
	assert.Equal(t, 100.0, snap.Max)
	assert.InDelta(t, 50.5, snap.Mean, 1e-9)
	assert.InDelta(t, 95.05, snap.P95, 1e-9)
}

func TestHistogramBounded(t *testing.T) {
	h := NewHistogram(3)
	for _, v := range []float64{10, 20, 30, 40} {
		h.Record(v)
	}

	// The oldest sample was dropped
	assert.Equal(t, 3, h.Count())
	assert.Equal(t, 20.0, h.Snapshot().Min)

	h.Reset()
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, HistogramSnapshot{}, h.Snapshot())
	assert.Equal(t, 0.0, h.Percentile(99))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordTouch(AccessLookup)
	m.RecordTouch(AccessLookup)
	m.RecordTouch(AccessIndex)
	m.RecordTouch(AccessType(99))
	m.RecordPin()
	m.RecordUnpin()
	m.RecordUnpin()
	m.RecordEviction(true, time.Microsecond)
	m.RecordEviction(false, time.Microsecond)
	m.RecordRemoval()
	m.RecordOvercommit()

	assert.Equal(t, uint64(2), m.GetTouches(AccessLookup))
	assert.Equal(t, uint64(1), m.GetTouches(AccessIndex))
	assert.Equal(t, uint64(1), m.GetTouches(AccessUnknown), "out of range types count as unknown")
	assert.Equal(t, uint64(0), m.GetTouches(AccessType(99)))
	assert.Equal(t, uint64(4), m.GetTotalTouches())
	assert.Equal(t, uint64(1), m.GetPins())
	assert.Equal(t, uint64(2), m.GetUnpins())
	assert.Equal(t, uint64(1), m.GetEvictions())
	assert.Equal(t, uint64(1), m.GetEmptyEvictions())
	assert.Equal(t, 0.5, m.GetEvictHitRate())
	assert.Equal(t, uint64(1), m.GetRemovals())
	assert.Equal(t, uint64(1), m.GetOvercommits())
	assert.Equal(t, 1000.0, m.GetEvictLatency().P50)
	assert.GreaterOrEqual(t, m.GetUptime(), time.Duration(0))

	m.Reset()
	assert.Equal(t, uint64(0), m.GetTotalTouches())
	assert.Equal(t, uint64(0), m.GetEvictions())
	assert.Equal(t, 0.0, m.GetEvictHitRate())
	assert.Equal(t, 0, m.GetEvictLatency().Count)
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.RecordTouch(AccessScan)
				m.RecordEviction(j%2 == 0, time.Nanosecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(8000), m.GetTouches(AccessScan))
	assert.Equal(t, uint64(4000), m.GetEvictions())
	assert.Equal(t, uint64(4000), m.GetEmptyEvictions())
}

func TestLogMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetrics()
	m.RecordTouch(AccessScan)
	m.RecordEviction(true, time.Millisecond)

	m.LogMetrics(bufferLogger(&buf))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Replacer Metrics", entry["msg"])

	touches, ok := entry["touches"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, touches["scan"])

	evictions, ok := entry["evictions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, evictions["found"])
	assert.Equal(t, 1.0, evictions["hit_rate"])
}
