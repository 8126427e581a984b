package vm

// An Entry of the inverted page table describes the page that occupies the
// frame with the same index.
type Entry struct {
	PID       PID
	Page      uint64
	Timestamp uint64
	Modified  bool
	Valid     bool
}

// An InvertedPageTable has exactly one entry per physical frame and maps
// frames back to the (PID, page) pair they host.
type InvertedPageTable interface {
	// Find returns the frame that hosts the page of the given process.
	Find(pid PID, page uint64) (frame int, found bool)

	// FindFree returns the first frame that does not hold a valid page.
	FindFree() (frame int, found bool)

	// Install places a page into a frame. The modified flag is cleared and
	// the entry becomes valid. The timestamp is left untouched.
	Install(frame int, pid PID, page uint64)

	// Touch records the time of the latest reference to the frame.
	Touch(frame int, timestamp uint64)

	// MarkModified flags the hosted page as written since its last load.
	MarkModified(frame int)

	// Entry returns a copy of the entry of a frame.
	Entry(frame int) Entry

	// NumFrames returns the number of entries (and frames).
	NumFrames() int

	// UsedFrames returns the number of frames that hold a valid page.
	UsedFrames() int
}

// NewInvertedPageTable creates a table with numFrames invalid entries.
func NewInvertedPageTable(numFrames int) InvertedPageTable {
	if numFrames <= 0 {
		panic("inverted page table needs at least one frame")
	}

	return &invertedPageTableImpl{
		entries: make([]Entry, numFrames),
	}
}

type invertedPageTableImpl struct {
	entries []Entry
}

func (t *invertedPageTableImpl) Find(pid PID, page uint64) (int, bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.PID == pid && e.Page == page {
			return i, true
		}
	}

	return -1, false
}

func (t *invertedPageTableImpl) FindFree() (int, bool) {
	for i := range t.entries {
		if !t.entries[i].Valid {
			return i, true
		}
	}

	return -1, false
}

func (t *invertedPageTableImpl) Install(frame int, pid PID, page uint64) {
	e := t.entryMustExist(frame)

	e.PID = pid
	e.Page = page
	e.Modified = false
	e.Valid = true
}

func (t *invertedPageTableImpl) Touch(frame int, timestamp uint64) {
	t.entryMustExist(frame).Timestamp = timestamp
}

func (t *invertedPageTableImpl) MarkModified(frame int) {
	e := t.entryMustExist(frame)
	if !e.Valid {
		panic("cannot modify an invalid frame")
	}

	e.Modified = true
}

func (t *invertedPageTableImpl) Entry(frame int) Entry {
	return *t.entryMustExist(frame)
}

func (t *invertedPageTableImpl) NumFrames() int {
	return len(t.entries)
}

func (t *invertedPageTableImpl) UsedFrames() int {
	used := 0

	for i := range t.entries {
		if t.entries[i].Valid {
			used++
		}
	}

	return used
}

func (t *invertedPageTableImpl) entryMustExist(frame int) *Entry {
	if frame < 0 || frame >= len(t.entries) {
		panic("frame does not exist")
	}

	return &t.entries[frame]
}
