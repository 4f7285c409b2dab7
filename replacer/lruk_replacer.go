package replacer

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
)

const (
	// DefaultK is the look-back window used when none is configured
	DefaultK = 2

	// DefaultCapacity is the capacity used by DefaultLRUKConfig
	DefaultCapacity = 4096

	indexDegree = 32
)

// LRUKConfig configures an LRU-K replacer
type LRUKConfig struct {
	// Maximum number of frames the replacer is sized for (advisory)
	Capacity int

	// Number of most recent accesses kept per frame
	K int

	// Touches closer than this to the previous touch of the same frame are
	// correlated: they refresh the frame's recency but do not enter its
	// history. Zero treats every touch as uncorrelated.
	CorrelatedPeriod time.Duration

	// Wall clock used for the correlated period, time.Now if nil
	Now func() time.Time
}

// DefaultLRUKConfig returns the default LRU-K configuration
func DefaultLRUKConfig() LRUKConfig {
	return LRUKConfig{
		Capacity: DefaultCapacity,
		K:        DefaultK,
	}
}

// lrukFrame is the bookkeeping kept for a tracked frame.
// While the frame is evictable it sits in the index, so hist and lastAccess
// may only change after it has been taken out.
type lrukFrame[F FrameID] struct {
	id          F
	state       FrameState
	hist        history
	lastAccess  uint64    // stamp of the most recent access or registration
	lastTouchAt time.Time // wall time of the most recent touch
}

// LRUKReplacer implements the LRU-K replacement policy.
//
// The victim is the evictable frame with the largest backward K-distance,
// the time since its K-th most recent access. Frames with fewer than K
// recorded accesses have an infinite distance and go first, least recently
// accessed first. Since "now" is shared by all frames, the largest distance
// is the oldest K-th access, which lets the evictable frames live in a
// B-tree ordered by rank instead of being scanned on every eviction.
type LRUKReplacer[F FrameID] struct {
	id     uuid.UUID
	config LRUKConfig
	clock  logicalClock
	frames map[F]*lrukFrame[F]
	index  *btree.BTreeG[*lrukFrame[F]] // evictable frames, next victim first
	mutex  sync.Mutex
}

// NewLRUKReplacer creates a new LRU-K replacer with the given capacity and K
func NewLRUKReplacer[F FrameID](capacity, k int) *LRUKReplacer[F] {
	config := DefaultLRUKConfig()
	config.Capacity = capacity
	config.K = k
	return NewLRUKReplacerWithConfig[F](config)
}

// NewLRUKReplacerWithConfig creates a new LRU-K replacer
func NewLRUKReplacerWithConfig[F FrameID](config LRUKConfig) *LRUKReplacer[F] {
	if config.K < 1 {
		config.K = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &LRUKReplacer[F]{
		id:     uuid.New(),
		config: config,
		frames: make(map[F]*lrukFrame[F], max(config.Capacity, 0)),
		index:  btree.NewG(indexDegree, victimBefore[F]),
	}
}

// victimBefore orders frames by eviction priority
func victimBefore[F FrameID](a, b *lrukFrame[F]) bool {
	aFull, bFull := a.hist.full(), b.hist.full()
	if aFull != bFull {
		return !aFull
	}
	if aFull && a.hist.kth() != b.hist.kth() {
		return a.hist.kth() < b.hist.kth()
	}
	return a.lastAccess < b.lastAccess
}

// ID returns the instance identifier used in logs and snapshots
func (lk *LRUKReplacer[F]) ID() uuid.UUID {
	return lk.id
}

// K returns the look-back window
func (lk *LRUKReplacer[F]) K() int {
	return lk.config.K
}

func (lk *LRUKReplacer[F]) Capacity() int {
	return lk.config.Capacity
}

func (lk *LRUKReplacer[F]) Size() int {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	return lk.index.Len()
}

// State returns the candidacy state of a frame
func (lk *LRUKReplacer[F]) State(id F) FrameState {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	if frame, ok := lk.frames[id]; ok {
		return frame.state
	}
	return Untracked
}

// Unpin makes a frame evictable. An unseen frame is registered with an empty
// history; a pinned frame comes back with the history it had.
func (lk *LRUKReplacer[F]) Unpin(id F) {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.frames[id]
	if !ok {
		frame = lk.track(id)
		frame.lastAccess = lk.clock.tick()
		lk.index.ReplaceOrInsert(frame)
		return
	}
	if frame.state == Pinned {
		frame.state = Evictable
		lk.index.ReplaceOrInsert(frame)
	}
}

// Pin takes a frame out of the index; its history is retained
func (lk *LRUKReplacer[F]) Pin(id F) {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.frames[id]
	if !ok || frame.state == Pinned {
		return
	}
	lk.index.Delete(frame)
	frame.state = Pinned
}

func (lk *LRUKReplacer[F]) Touch(id F) {
	lk.TouchWith(id, AccessUnknown)
}

// TouchWith records an access; LRU-K ranks every access type the same.
func (lk *LRUKReplacer[F]) TouchWith(id F, _ AccessType) {
	// The wall clock is read before locking so no caller code runs under the mutex
	var now time.Time
	if lk.config.CorrelatedPeriod > 0 {
		now = lk.config.Now()
	}

	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.frames[id]
	if !ok {
		frame = lk.track(id)
		lk.record(frame, now)
		lk.index.ReplaceOrInsert(frame)
		return
	}

	if frame.state == Evictable {
		lk.index.Delete(frame)
		lk.record(frame, now)
		lk.index.ReplaceOrInsert(frame)
		return
	}
	lk.record(frame, now)
}

// Evict removes and returns the frame with the largest backward K-distance
func (lk *LRUKReplacer[F]) Evict() (F, bool) {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.index.DeleteMin()
	if !ok {
		var zero F
		return zero, false
	}
	delete(lk.frames, frame.id)

	return frame.id, true
}

func (lk *LRUKReplacer[F]) Peek() (F, bool) {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.index.Min()
	if !ok {
		var zero F
		return zero, false
	}
	return frame.id, true
}

func (lk *LRUKReplacer[F]) Remove(id F) error {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	frame, ok := lk.frames[id]
	if !ok {
		return nil
	}
	if frame.state == Pinned {
		return ErrFramePinned("Remove", id)
	}
	lk.index.Delete(frame)
	delete(lk.frames, id)
	return nil
}

// Snapshot captures the replacer state; evictable frames come in victim order
func (lk *LRUKReplacer[F]) Snapshot() *Snapshot[F] {
	lk.mutex.Lock()
	defer lk.mutex.Unlock()

	snap := &Snapshot[F]{
		InstanceID: lk.id,
		Algorithm:  AlgorithmLRUK,
		Capacity:   lk.config.Capacity,
		K:          lk.config.K,
		Clock:      lk.clock.now,
		Size:       lk.index.Len(),
		Frames:     make([]FrameSnapshot[F], 0, len(lk.frames)),
	}
	lk.index.Ascend(func(frame *lrukFrame[F]) bool {
		snap.Frames = append(snap.Frames, frame.snapshot())
		return true
	})
	pinned := make([]FrameSnapshot[F], 0, len(lk.frames)-lk.index.Len())
	for _, frame := range lk.frames {
		if frame.state == Pinned {
			pinned = append(pinned, frame.snapshot())
		}
	}
	snap.appendPinned(pinned)

	return snap
}

// track creates the record of an unseen frame. Caller must hold the mutex.
func (lk *LRUKReplacer[F]) track(id F) *lrukFrame[F] {
	frame := &lrukFrame[F]{
		id:    id,
		state: Evictable,
		hist:  newHistory(lk.config.K),
	}
	lk.frames[id] = frame
	return frame
}

// record stamps an access on a frame that is not in the index
func (lk *LRUKReplacer[F]) record(frame *lrukFrame[F], now time.Time) {
	stamp := lk.clock.tick()

	correlated := false
	if period := lk.config.CorrelatedPeriod; period > 0 {
		correlated = !frame.lastTouchAt.IsZero() && now.Sub(frame.lastTouchAt) <= period
		frame.lastTouchAt = now
	}

	if !correlated {
		frame.hist.record(stamp)
	}
	frame.lastAccess = stamp
}

func (frame *lrukFrame[F]) snapshot() FrameSnapshot[F] {
	return FrameSnapshot[F]{
		ID:         frame.id,
		State:      frame.state,
		History:    frame.hist.recent(),
		LastAccess: frame.lastAccess,
	}
}
