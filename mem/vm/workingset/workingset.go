// Package workingset tracks the recently referenced pages of a workload.
package workingset

// A Set is a fixed-capacity window of the latest pages a workload referenced.
// The oldest slot is at the head and the newest at the tail. A page may occupy
// several slots.
type Set interface {
	// Insert shifts every slot one position towards the head, dropping the
	// head, and writes page to the tail.
	Insert(page uint64)

	// Remove invalidates the first slot that holds page.
	Remove(page uint64)

	// Contains tells if any slot holds page.
	Contains(page uint64) bool

	// Capacity returns the number of slots.
	Capacity() int

	// Pages returns the valid pages from the oldest to the newest.
	Pages() []uint64
}

type slot struct {
	page  uint64
	valid bool
}

// New creates an empty working set with size slots.
func New(size int) Set {
	if size <= 0 {
		panic("working set size must be positive")
	}

	return &setImpl{
		slots: make([]slot, size),
	}
}

type setImpl struct {
	slots []slot
}

func (s *setImpl) Insert(page uint64) {
	copy(s.slots, s.slots[1:])
	s.slots[len(s.slots)-1] = slot{page: page, valid: true}
}

func (s *setImpl) Remove(page uint64) {
	for i := range s.slots {
		if s.slots[i].valid && s.slots[i].page == page {
			s.slots[i] = slot{}
			return
		}
	}
}

func (s *setImpl) Contains(page uint64) bool {
	for _, sl := range s.slots {
		if sl.valid && sl.page == page {
			return true
		}
	}

	return false
}

func (s *setImpl) Capacity() int {
	return len(s.slots)
}

func (s *setImpl) Pages() []uint64 {
	pages := make([]uint64, 0, len(s.slots))

	for _, sl := range s.slots {
		if sl.valid {
			pages = append(pages, sl.page)
		}
	}

	return pages
}
