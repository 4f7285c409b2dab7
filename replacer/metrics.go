package replacer

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// Histogram tracks latency distribution with percentile support
type Histogram struct {
	samples []float64 // Latencies in nanoseconds
	mu      sync.Mutex
	maxSize int // Maximum samples to retain
	sorted  bool
}

// NewHistogram creates a new histogram with a max sample size
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000 // Default: keep last 10k samples
	}
	return &Histogram{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
		sorted:  true,
	}
}

// Record adds a latency sample
func (h *Histogram) Record(latencyNs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// At capacity the oldest sample goes
	if len(h.samples) >= h.maxSize {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}

	h.samples = append(h.samples, latencyNs)
	h.sorted = false
}

// Percentile calculates the given percentile (0-100)
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.percentileLocked(p)
}

func (h *Histogram) percentileLocked(p float64) float64 {
	if len(h.samples) == 0 {
		return 0
	}
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}

	rank := (p / 100.0) * float64(len(h.samples)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return h.samples[lower]
	}

	// Linear interpolation between lower and upper
	weight := rank - float64(lower)
	return h.samples[lower]*(1-weight) + h.samples[upper]*weight
}

// Count returns the number of samples
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// Reset clears all samples
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
	h.sorted = true
}

// HistogramSnapshot holds percentile statistics
type HistogramSnapshot struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// Snapshot captures current histogram statistics in one pass
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n == 0 {
		return HistogramSnapshot{}
	}

	snap := HistogramSnapshot{
		Count: n,
		P50:   h.percentileLocked(50),
		P95:   h.percentileLocked(95),
		P99:   h.percentileLocked(99),
	}
	// samples are sorted now
	snap.Min = h.samples[0]
	snap.Max = h.samples[n-1]
	sum := 0.0
	for _, v := range h.samples {
		sum += v
	}
	snap.Mean = sum / float64(n)
	return snap
}

// counter is an atomic counter that owns a whole cache line, so counters
// bumped by different goroutines do not false-share.
type counter struct {
	atomic.Uint64
	_ cpu.CacheLinePad
}

// Metrics tracks replacer activity
type Metrics struct {
	touches      [numAccessTypes]counter
	pins         counter
	unpins       counter
	evictions    counter
	emptyEvicts  counter
	removals     counter
	overcommits  counter
	evictLatency *Histogram
	startTime    atomic.Int64 // unix nanos
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	m := &Metrics{
		evictLatency: NewHistogram(10000),
	}
	m.startTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) RecordTouch(access AccessType) {
	if access >= numAccessTypes {
		access = AccessUnknown
	}
	m.touches[access].Add(1)
}

func (m *Metrics) RecordPin() {
	m.pins.Add(1)
}

func (m *Metrics) RecordUnpin() {
	m.unpins.Add(1)
}

// RecordEviction records the outcome and latency of an Evict call
func (m *Metrics) RecordEviction(found bool, duration time.Duration) {
	if found {
		m.evictions.Add(1)
	} else {
		m.emptyEvicts.Add(1)
	}
	m.evictLatency.Record(float64(duration.Nanoseconds()))
}

func (m *Metrics) RecordRemoval() {
	m.removals.Add(1)
}

// RecordOvercommit records that the evictable set grew past capacity
func (m *Metrics) RecordOvercommit() {
	m.overcommits.Add(1)
}

// Getters

// GetTouches returns the touches recorded for one access type
func (m *Metrics) GetTouches(access AccessType) uint64 {
	if access >= numAccessTypes {
		return 0
	}
	return m.touches[access].Load()
}

// GetTotalTouches returns the touches recorded for all access types
func (m *Metrics) GetTotalTouches() uint64 {
	var total uint64
	for i := range m.touches {
		total += m.touches[i].Load()
	}
	return total
}

func (m *Metrics) GetPins() uint64 {
	return m.pins.Load()
}

func (m *Metrics) GetUnpins() uint64 {
	return m.unpins.Load()
}

func (m *Metrics) GetEvictions() uint64 {
	return m.evictions.Load()
}

func (m *Metrics) GetEmptyEvictions() uint64 {
	return m.emptyEvicts.Load()
}

func (m *Metrics) GetRemovals() uint64 {
	return m.removals.Load()
}

func (m *Metrics) GetOvercommits() uint64 {
	return m.overcommits.Load()
}

// GetEvictHitRate returns the share of Evict calls that found a victim
func (m *Metrics) GetEvictHitRate() float64 {
	found := m.evictions.Load()
	total := found + m.emptyEvicts.Load()
	if total == 0 {
		return 0.0
	}
	return float64(found) / float64(total)
}

// GetEvictLatency returns snapshot of the evict latency distribution
func (m *Metrics) GetEvictLatency() HistogramSnapshot {
	return m.evictLatency.Snapshot()
}

func (m *Metrics) GetUptime() time.Duration {
	return time.Duration(time.Now().UnixNano() - m.startTime.Load())
}

// LogMetrics logs all metrics using structured logging
func (m *Metrics) LogMetrics(logger *slog.Logger) {
	evictLatency := m.GetEvictLatency()

	logger.Info("Replacer Metrics",
		slog.Group("touches",
			slog.Uint64("unknown", m.GetTouches(AccessUnknown)),
			slog.Uint64("lookup", m.GetTouches(AccessLookup)),
			slog.Uint64("scan", m.GetTouches(AccessScan)),
			slog.Uint64("index", m.GetTouches(AccessIndex)),
		),
		slog.Uint64("pins", m.GetPins()),
		slog.Uint64("unpins", m.GetUnpins()),
		slog.Group("evictions",
			slog.Uint64("found", m.GetEvictions()),
			slog.Uint64("empty", m.GetEmptyEvictions()),
			slog.Float64("hit_rate", m.GetEvictHitRate()),
		),
		slog.Uint64("removals", m.GetRemovals()),
		slog.Uint64("overcommits", m.GetOvercommits()),
		slog.Group("evict_latency_ns",
			slog.Int("count", evictLatency.Count),
			slog.Float64("mean", evictLatency.Mean),
			slog.Float64("p50", evictLatency.P50),
			slog.Float64("p95", evictLatency.P95),
			slog.Float64("p99", evictLatency.P99),
		),
		slog.Duration("uptime", m.GetUptime()),
	)
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for i := range m.touches {
		m.touches[i].Store(0)
	}
	m.pins.Store(0)
	m.unpins.Store(0)
	m.evictions.Store(0)
	m.emptyEvicts.Store(0)
	m.removals.Store(0)
	m.overcommits.Store(0)
	m.evictLatency.Reset()
	m.startTime.Store(time.Now().UnixNano())
}
