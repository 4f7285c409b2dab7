package replacer

import (
	"cmp"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Snapshot is a point-in-time view of a replacer, taken under its lock.
// It is meant for inspection and debugging; replacers cannot be restored
// from it.
type Snapshot[F FrameID] struct {
	InstanceID uuid.UUID          `msgpack:"instance_id"`
	Algorithm  Algorithm          `msgpack:"algorithm"`
	Capacity   int                `msgpack:"capacity"`
	K          int                `msgpack:"k,omitempty"`
	Clock      uint64             `msgpack:"clock"`
	Size       int                `msgpack:"size"`
	Frames     []FrameSnapshot[F] `msgpack:"frames"`
}

// FrameSnapshot describes one tracked frame
type FrameSnapshot[F FrameID] struct {
	ID         F          `msgpack:"id"`
	State      FrameState `msgpack:"state"`
	History    []uint64   `msgpack:"history,omitempty"` // most recent first
	LastAccess uint64     `msgpack:"last_access"`
}

// Snapshotter is implemented by replacers that can describe their state
type Snapshotter[F FrameID] interface {
	Snapshot() *Snapshot[F]
}

// Victims returns the evictable frame ids in the order Evict would return them
func (s *Snapshot[F]) Victims() []F {
	ids := make([]F, 0, s.Size)
	for _, frame := range s.Frames {
		if frame.State == Evictable {
			ids = append(ids, frame.ID)
		}
	}
	return ids
}

// Frame looks up a frame by id
func (s *Snapshot[F]) Frame(id F) (FrameSnapshot[F], bool) {
	for _, frame := range s.Frames {
		if frame.ID == id {
			return frame, true
		}
	}
	return FrameSnapshot[F]{}, false
}

// appendPinned adds pinned frames after the evictable ones, ordered by id
func (s *Snapshot[F]) appendPinned(pinned []FrameSnapshot[F]) {
	slices.SortFunc(pinned, func(a, b FrameSnapshot[F]) int {
		return cmp.Compare(a.ID, b.ID)
	})
	s.Frames = append(s.Frames, pinned...)
}
