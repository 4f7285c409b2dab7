package replacer

import "golang.org/x/exp/constraints"

// FrameID is the set of types usable as frame identifiers.
// Identifiers are opaque to the replacers: only equality and order are used.
type FrameID interface {
	constraints.Integer | ~string
}

// AccessType describes the nature of a page access.
// Replacers may rank accesses differently based on it.
type AccessType uint8

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex

	numAccessTypes
)

func (a AccessType) String() string {
	switch a {
	case AccessLookup:
		return "lookup"
	case AccessScan:
		return "scan"
	case AccessIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Policy is the contract every page replacement algorithm implements.
// Buffer pools and caches program against this interface only, so
// algorithms (LRU, LRU-K, or user-defined ones) are interchangeable.
//
// All methods are safe for concurrent use and none of them block.
type Policy[F FrameID] interface {
	// Capacity returns the number of frames the policy was sized for.
	Capacity() int

	// Size returns the number of evictable frames.
	Size() int

	// Unpin marks a frame as evictable, tracking it if it was unseen.
	// Unpinning an evictable frame has no effect.
	Unpin(id F)

	// Pin marks a frame as non-evictable.
	// Pinning an untracked or already pinned frame has no effect.
	Pin(id F)

	// Touch records an access to a frame.
	// A frame that was never seen becomes evictable.
	Touch(id F)

	// TouchWith records an access of the given kind to a frame.
	TouchWith(id F, access AccessType)

	// Evict selects a victim, stops tracking it and returns it.
	// It returns false if no frame is evictable.
	Evict() (F, bool)

	// Peek returns the frame Evict would select, without removing it.
	Peek() (F, bool)

	// Remove stops tracking an evictable frame regardless of its rank.
	// Removing an untracked frame is a no-op; removing a pinned frame fails.
	Remove(id F) error
}

var (
	_ Policy[uint32] = (*LRUReplacer[uint32])(nil)
	_ Policy[uint32] = (*LRUKReplacer[uint32])(nil)
	_ Policy[string] = (*Instrumented[string])(nil)
)

// Algorithm names a built-in replacement algorithm
type Algorithm string

const (
	AlgorithmLRU  Algorithm = "lru"
	AlgorithmLRUK Algorithm = "lru-k"
)

// NewPolicy creates a replacer for the given algorithm.
// LRU-K replacers are created with the default K.
func NewPolicy[F FrameID](algorithm Algorithm, capacity int) (Policy[F], error) {
	switch algorithm {
	case AlgorithmLRU:
		return NewLRUReplacer[F](capacity), nil
	case AlgorithmLRUK:
		return NewLRUKReplacer[F](capacity, DefaultK), nil
	default:
		return nil, ErrUnknownAlgorithm("NewPolicy", string(algorithm))
	}
}
