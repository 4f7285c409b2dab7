package replacer

// FrameState is the eviction candidacy of a frame
type FrameState uint8

const (
	Untracked FrameState = iota
	Pinned
	Evictable
)

func (s FrameState) String() string {
	switch s {
	case Pinned:
		return "pinned"
	case Evictable:
		return "evictable"
	default:
		return "untracked"
	}
}

// logicalClock hands out strictly increasing timestamps.
// It is not synchronized: callers advance it while holding the replacer lock,
// so the order of timestamps is the order in which calls acquired the lock.
type logicalClock struct {
	now uint64
}

func (c *logicalClock) tick() uint64 {
	c.now++
	return c.now
}

// history keeps the k most recent access timestamps of a frame in a ring
type history struct {
	stamps []uint64
	start  int // index of the oldest stamp
	n      int
}

func newHistory(k int) history {
	return history{stamps: make([]uint64, k)}
}

// record appends a timestamp, dropping the oldest one once k are stored
func (h *history) record(stamp uint64) {
	k := len(h.stamps)
	if h.n < k {
		h.stamps[(h.start+h.n)%k] = stamp
		h.n++
		return
	}
	h.stamps[h.start] = stamp
	h.start = (h.start + 1) % k
}

func (h *history) full() bool {
	return h.n == len(h.stamps)
}

func (h *history) len() int {
	return h.n
}

// kth returns the k-th most recent timestamp; only meaningful when full
func (h *history) kth() uint64 {
	return h.stamps[h.start]
}

// recent returns the stamps most recent first
func (h *history) recent() []uint64 {
	if h.n == 0 {
		return nil
	}
	out := make([]uint64, h.n)
	k := len(h.stamps)
	for i := 0; i < h.n; i++ {
		out[i] = h.stamps[(h.start+h.n-1-i)%k]
	}
	return out
}
