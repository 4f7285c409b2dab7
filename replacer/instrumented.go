package replacer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Instrumented wraps a Policy, recording metrics and logging evictions.
// The inner policy's lock is never held while Instrumented logs.
type Instrumented[F FrameID] struct {
	inner   Policy[F]
	metrics *Metrics
	logger  *slog.Logger

	overCapacity atomic.Bool
}

// NewInstrumented wraps policy. A nil metrics or logger gets a fresh one or
// the default logger respectively.
func NewInstrumented[F FrameID](policy Policy[F], metrics *Metrics, logger *slog.Logger) *Instrumented[F] {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if p, ok := policy.(interface{ ID() uuid.UUID }); ok {
		logger = logger.With(slog.String("replacer", p.ID().String()))
	}
	return &Instrumented[F]{
		inner:   policy,
		metrics: metrics,
		logger:  logger,
	}
}

// Unwrap returns the wrapped policy
func (in *Instrumented[F]) Unwrap() Policy[F] {
	return in.inner
}

// GetMetrics returns the metrics the wrapper records into
func (in *Instrumented[F]) GetMetrics() *Metrics {
	return in.metrics
}

func (in *Instrumented[F]) Capacity() int {
	return in.inner.Capacity()
}

func (in *Instrumented[F]) Size() int {
	return in.inner.Size()
}

func (in *Instrumented[F]) Unpin(id F) {
	in.inner.Unpin(id)
	in.metrics.RecordUnpin()
	in.checkCapacity()
}

func (in *Instrumented[F]) Pin(id F) {
	in.inner.Pin(id)
	in.metrics.RecordPin()
	in.checkCapacity()
}

func (in *Instrumented[F]) Touch(id F) {
	in.TouchWith(id, AccessUnknown)
}

func (in *Instrumented[F]) TouchWith(id F, access AccessType) {
	in.inner.TouchWith(id, access)
	in.metrics.RecordTouch(access)
	in.checkCapacity()
}

func (in *Instrumented[F]) Evict() (F, bool) {
	start := time.Now()
	id, ok := in.inner.Evict()
	in.metrics.RecordEviction(ok, time.Since(start))

	if ok {
		in.logger.Debug("frame evicted", slog.Any("frame", id))
		in.checkCapacity()
	}
	return id, ok
}

func (in *Instrumented[F]) Peek() (F, bool) {
	return in.inner.Peek()
}

func (in *Instrumented[F]) Remove(id F) error {
	if err := in.inner.Remove(id); err != nil {
		in.logger.Debug("frame removal refused", slog.Any("frame", id), slog.Any("error", err))
		return err
	}
	in.metrics.RecordRemoval()
	return nil
}

// Snapshot delegates to the wrapped policy when it supports snapshots
func (in *Instrumented[F]) Snapshot() *Snapshot[F] {
	if s, ok := in.inner.(Snapshotter[F]); ok {
		return s.Snapshot()
	}
	return nil
}

// checkCapacity warns once each time the evictable set grows past capacity
func (in *Instrumented[F]) checkCapacity() {
	size, capacity := in.inner.Size(), in.inner.Capacity()
	if size <= capacity {
		in.overCapacity.Store(false)
		return
	}
	if in.overCapacity.CompareAndSwap(false, true) {
		in.metrics.RecordOvercommit()
		in.logger.Warn("evictable frames exceed replacer capacity",
			slog.Int("size", size),
			slog.Int("capacity", capacity),
		)
	}
}
