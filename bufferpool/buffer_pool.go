package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/farazdagi/evict/replacer"
)

var (
	ErrNoFreeFrames = errors.New("no free frames available in buffer pool")
	ErrPagePinned   = errors.New("page is pinned")
	ErrPageNotFound = errors.New("page not found in buffer pool")
)

// FrameID is the index of a frame in the pool
type FrameID uint32

// Page is a page held by a frame, with its pin count and dirty flag.
// Pin count and dirty flag are guarded by the pool; Data may be used by the
// caller while the page is pinned.
type Page struct {
	id       PageID
	pinCount int
	dirty    bool
	data     []byte
}

func (p *Page) ID() PageID {
	return p.id
}

func (p *Page) Data() []byte {
	return p.data
}

// Stats counts pool activity
type Stats struct {
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	DirtyFlushes uint64
}

// BufferPool caches pages of a Store in a fixed number of frames and asks a
// replacer which frame to reuse when none is free.
type BufferPool struct {
	frames    []*Page
	pageTable map[PageID]FrameID
	freeList  []FrameID
	store     Store
	policy    replacer.Policy[FrameID]
	mutex     sync.Mutex

	hits         atomic.Uint64
	misses       atomic.Uint64
	evictions    atomic.Uint64
	dirtyFlushes atomic.Uint64
}

// NewBufferPool creates a buffer pool with poolSize frames
func NewBufferPool(poolSize int, store Store, policy replacer.Policy[FrameID]) (*BufferPool, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}

	bp := &BufferPool{
		frames:    make([]*Page, poolSize),
		pageTable: make(map[PageID]FrameID, poolSize),
		freeList:  make([]FrameID, 0, poolSize),
		store:     store,
		policy:    policy,
	}
	for i := 0; i < poolSize; i++ {
		bp.freeList = append(bp.freeList, FrameID(i))
	}

	return bp, nil
}

// NewBufferPoolFromConfig creates a pool with one frame per unit of the
// configured replacer capacity.
func NewBufferPoolFromConfig(config *replacer.Config, store Store, logger *slog.Logger) (*BufferPool, error) {
	policy, err := replacer.NewPolicyFromConfig[FrameID](config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create replacer: %w", err)
	}
	return NewBufferPool(config.Capacity, store, policy)
}

// Policy returns the replacer the pool consults
func (bp *BufferPool) Policy() replacer.Policy[FrameID] {
	return bp.policy
}

// PoolSize returns the number of frames
func (bp *BufferPool) PoolSize() int {
	return len(bp.frames)
}

// NewPage allocates a page in the store and brings it into the pool pinned
func (bp *BufferPool) NewPage() (*Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	frameID, err := bp.getFrameID()
	if err != nil {
		return nil, fmt.Errorf("failed to get free frame: %w", err)
	}

	page := &Page{
		id:       bp.store.AllocatePage(),
		pinCount: 1,
		data:     make([]byte, PageSize),
	}
	bp.install(frameID, page, replacer.AccessUnknown)

	return page, nil
}

// FetchPage returns a pinned page, reading it from the store on a miss
func (bp *BufferPool) FetchPage(pageID PageID) (*Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if frameID, ok := bp.pageTable[pageID]; ok {
		bp.hits.Add(1)
		page := bp.frames[frameID]
		page.pinCount++
		bp.policy.TouchWith(frameID, replacer.AccessLookup)
		bp.policy.Pin(frameID)
		return page, nil
	}

	bp.misses.Add(1)

	data, err := bp.store.ReadPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read page from store: %w", err)
	}

	frameID, err := bp.getFrameID()
	if err != nil {
		return nil, fmt.Errorf("failed to get free frame: %w", err)
	}

	page := &Page{id: pageID, pinCount: 1, data: data}
	bp.install(frameID, page, replacer.AccessLookup)

	return page, nil
}

// UnpinPage drops one pin of a page and optionally marks it dirty.
// The frame becomes evictable once the last pin is gone.
func (bp *BufferPool) UnpinPage(pageID PageID, isDirty bool) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return fmt.Errorf("unpin page %d: %w", pageID, ErrPageNotFound)
	}

	page := bp.frames[frameID]
	if page.pinCount <= 0 {
		return fmt.Errorf("unpin page %d: page is not pinned", pageID)
	}

	page.pinCount--
	if isDirty {
		page.dirty = true
	}
	if page.pinCount == 0 {
		bp.policy.Unpin(frameID)
	}

	return nil
}

// FlushPage writes a page back to the store if it is in the pool
func (bp *BufferPool) FlushPage(pageID PageID) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return fmt.Errorf("flush page %d: %w", pageID, ErrPageNotFound)
	}
	return bp.flush(bp.frames[frameID])
}

// FlushAllPages writes every dirty page back to the store
func (bp *BufferPool) FlushAllPages() error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for _, page := range bp.frames {
		if page == nil || !page.dirty {
			continue
		}
		if err := bp.flush(page); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage drops an unpinned page from the pool without writing it back
func (bp *BufferPool) DeletePage(pageID PageID) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return nil
	}
	if bp.frames[frameID].pinCount > 0 {
		return fmt.Errorf("delete page %d: %w", pageID, ErrPagePinned)
	}
	if err := bp.policy.Remove(frameID); err != nil {
		return fmt.Errorf("delete page %d: %w", pageID, err)
	}

	delete(bp.pageTable, pageID)
	bp.frames[frameID] = nil
	bp.freeList = append(bp.freeList, frameID)

	return nil
}

// Stats returns a copy of the pool counters
func (bp *BufferPool) Stats() Stats {
	return Stats{
		Hits:         bp.hits.Load(),
		Misses:       bp.misses.Load(),
		Evictions:    bp.evictions.Load(),
		DirtyFlushes: bp.dirtyFlushes.Load(),
	}
}

// install places a pinned page in a frame. Caller must hold the mutex.
func (bp *BufferPool) install(frameID FrameID, page *Page, access replacer.AccessType) {
	bp.frames[frameID] = page
	bp.pageTable[page.id] = frameID
	bp.policy.TouchWith(frameID, access)
	bp.policy.Pin(frameID)
}

// getFrameID returns a free frame, evicting a page if necessary.
// Caller must hold the mutex.
func (bp *BufferPool) getFrameID() (FrameID, error) {
	if n := len(bp.freeList); n > 0 {
		frameID := bp.freeList[0]
		bp.freeList = bp.freeList[1:]
		return frameID, nil
	}

	frameID, ok := bp.policy.Evict()
	if !ok {
		return 0, ErrNoFreeFrames
	}

	victim := bp.frames[frameID]
	if victim != nil {
		if victim.dirty {
			if err := bp.flush(victim); err != nil {
				// The frame is untracked by the replacer now; keep it usable
				bp.policy.Unpin(frameID)
				return 0, fmt.Errorf("failed to flush dirty page: %w", err)
			}
			bp.dirtyFlushes.Add(1)
		}
		delete(bp.pageTable, victim.id)
		bp.frames[frameID] = nil
	}
	bp.evictions.Add(1)

	return frameID, nil
}

// flush writes a page to the store. Caller must hold the mutex.
func (bp *BufferPool) flush(page *Page) error {
	if err := bp.store.WritePage(page.id, page.data); err != nil {
		return fmt.Errorf("failed to write page %d: %w", page.id, err)
	}
	page.dirty = false
	return nil
}
