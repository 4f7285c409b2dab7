package replacer

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// lruFrame is the bookkeeping kept for a tracked frame
type lruFrame[F FrameID] struct {
	id         F
	state      FrameState
	lastAccess uint64
	elem       *list.Element // position in the recency list, nil while pinned
}

// LRUReplacer implements LRU (Least Recently Used) replacement policy.
// Evictable frames are kept in a list ordered from least to most recently
// used; pinned frames keep their record but leave the list.
type LRUReplacer[F FrameID] struct {
	id       uuid.UUID
	capacity int
	clock    logicalClock
	lruList  *list.List // front is the next victim
	frames   map[F]*lruFrame[F]
	mutex    sync.Mutex
}

// NewLRUReplacer creates a new LRU replacer
func NewLRUReplacer[F FrameID](capacity int) *LRUReplacer[F] {
	return &LRUReplacer[F]{
		id:       uuid.New(),
		capacity: capacity,
		lruList:  list.New(),
		frames:   make(map[F]*lruFrame[F], max(capacity, 0)),
	}
}

// ID returns the instance identifier used in logs and snapshots
func (lru *LRUReplacer[F]) ID() uuid.UUID {
	return lru.id
}

func (lru *LRUReplacer[F]) Capacity() int {
	return lru.capacity
}

func (lru *LRUReplacer[F]) Size() int {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	return lru.lruList.Len()
}

// State returns the candidacy state of a frame
func (lru *LRUReplacer[F]) State(id F) FrameState {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	if frame, ok := lru.frames[id]; ok {
		return frame.state
	}
	return Untracked
}

// Unpin adds a frame to the back of the list (most recently used).
// A frame that is already evictable keeps its position.
func (lru *LRUReplacer[F]) Unpin(id F) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	frame, ok := lru.frames[id]
	if !ok {
		lru.track(id)
		return
	}
	if frame.state == Pinned {
		frame.lastAccess = lru.clock.tick()
		frame.state = Evictable
		frame.elem = lru.lruList.PushBack(frame)
	}
}

// Pin removes a frame from the list but keeps its record
func (lru *LRUReplacer[F]) Pin(id F) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	frame, ok := lru.frames[id]
	if !ok || frame.state == Pinned {
		return
	}
	lru.lruList.Remove(frame.elem)
	frame.elem = nil
	frame.state = Pinned
}

// Touch moves an evictable frame to the back of the list.
// Pinned frames stay pinned; they are placed on Unpin.
func (lru *LRUReplacer[F]) Touch(id F) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	frame, ok := lru.frames[id]
	if !ok {
		lru.track(id)
		return
	}
	frame.lastAccess = lru.clock.tick()
	if frame.state == Evictable {
		lru.lruList.MoveToBack(frame.elem)
	}
}

// TouchWith records an access; LRU ranks every access type the same.
func (lru *LRUReplacer[F]) TouchWith(id F, _ AccessType) {
	lru.Touch(id)
}

// Evict removes and returns the least recently used frame
func (lru *LRUReplacer[F]) Evict() (F, bool) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	oldest := lru.lruList.Front()
	if oldest == nil {
		var zero F
		return zero, false
	}

	frame := oldest.Value.(*lruFrame[F])
	lru.lruList.Remove(oldest)
	delete(lru.frames, frame.id)

	return frame.id, true
}

func (lru *LRUReplacer[F]) Peek() (F, bool) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	oldest := lru.lruList.Front()
	if oldest == nil {
		var zero F
		return zero, false
	}
	return oldest.Value.(*lruFrame[F]).id, true
}

func (lru *LRUReplacer[F]) Remove(id F) error {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	frame, ok := lru.frames[id]
	if !ok {
		return nil
	}
	if frame.state == Pinned {
		return ErrFramePinned("Remove", id)
	}
	lru.lruList.Remove(frame.elem)
	delete(lru.frames, id)
	return nil
}

// Snapshot captures the replacer state; evictable frames come in victim order
func (lru *LRUReplacer[F]) Snapshot() *Snapshot[F] {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	snap := &Snapshot[F]{
		InstanceID: lru.id,
		Algorithm:  AlgorithmLRU,
		Capacity:   lru.capacity,
		Clock:      lru.clock.now,
		Size:       lru.lruList.Len(),
		Frames:     make([]FrameSnapshot[F], 0, len(lru.frames)),
	}
	for e := lru.lruList.Front(); e != nil; e = e.Next() {
		snap.Frames = append(snap.Frames, lru.frameSnapshot(e.Value.(*lruFrame[F])))
	}
	pinned := make([]FrameSnapshot[F], 0, len(lru.frames)-lru.lruList.Len())
	for _, frame := range lru.frames {
		if frame.state == Pinned {
			pinned = append(pinned, lru.frameSnapshot(frame))
		}
	}
	snap.appendPinned(pinned)

	return snap
}

func (lru *LRUReplacer[F]) frameSnapshot(frame *lruFrame[F]) FrameSnapshot[F] {
	return FrameSnapshot[F]{
		ID:         frame.id,
		State:      frame.state,
		LastAccess: frame.lastAccess,
	}
}

// track registers an unseen frame as the most recently used one.
// Caller must hold the mutex.
func (lru *LRUReplacer[F]) track(id F) {
	frame := &lruFrame[F]{
		id:         id,
		state:      Evictable,
		lastAccess: lru.clock.tick(),
	}
	frame.elem = lru.lruList.PushBack(frame)
	lru.frames[id] = frame
}
