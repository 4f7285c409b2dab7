package bufferpool

import (
	"fmt"
	"sync"
)

// PageSize is the size of every page in bytes
const PageSize = 4096

// PageID identifies a page in the backing store
type PageID uint32

// Store is the backing storage the pool reads pages from and writes dirty
// victims back to.
type Store interface {
	AllocatePage() PageID
	ReadPage(pageID PageID) ([]byte, error)
	WritePage(pageID PageID, data []byte) error
}

// MemStore is an in-memory Store
type MemStore struct {
	pages      map[PageID][]byte
	nextPageID PageID
	writes     int
	mutex      sync.Mutex
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		pages: make(map[PageID][]byte),
	}
}

// AllocatePage allocates a new page and returns its page ID
func (s *MemStore) AllocatePage() PageID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pageID := s.nextPageID
	s.nextPageID++
	return pageID
}

// ReadPage returns a copy of a page; allocated pages never written read as zeroes
func (s *MemStore) ReadPage(pageID PageID) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if pageID >= s.nextPageID {
		return nil, fmt.Errorf("failed to read page %d: not allocated", pageID)
	}

	data := make([]byte, PageSize)
	copy(data, s.pages[pageID])
	return data, nil
}

func (s *MemStore) WritePage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if pageID >= s.nextPageID {
		return fmt.Errorf("failed to write page %d: not allocated", pageID)
	}
	s.pages[pageID] = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Writes returns how many page writes the store has served
func (s *MemStore) Writes() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writes
}
