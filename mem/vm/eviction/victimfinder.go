// Package eviction selects the frames to reclaim when physical memory is full.
package eviction

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
)

// A Victim is the frame chosen for reclamation.
type Victim struct {
	Frame int

	// Disturbed is set when the victim had to be taken from the working set
	// of another workload. DisturbedPID is that workload.
	Disturbed    bool
	DisturbedPID vm.PID
}

// A VictimFinder decides which frame should be evicted. It is only asked when
// every frame holds a valid page.
type VictimFinder interface {
	FindVictim(requester vm.PID) (Victim, error)
}

// UnsatisfiableError reports that the working sets cannot be honored with the
// number of frames available.
type UnsatisfiableError struct {
	WSSize    int
	NumFrames int
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf(
		"given working set size (%d) cannot be satisfied by %d frames",
		e.WSSize, e.NumFrames)
}

// LRUVictimFinder evicts the least recently used page, regardless of which
// workload owns it.
type LRUVictimFinder struct {
	table vm.InvertedPageTable
}

// NewLRUVictimFinder returns a newly constructed LRU evictor.
func NewLRUVictimFinder(table vm.InvertedPageTable) *LRUVictimFinder {
	return &LRUVictimFinder{table: table}
}

// FindVictim returns the frame with the smallest timestamp. Ties go to the
// lowest frame index.
func (f *LRUVictimFinder) FindVictim(_ vm.PID) (Victim, error) {
	victim := 0
	oldest := f.table.Entry(0).Timestamp

	for frame := 1; frame < f.table.NumFrames(); frame++ {
		ts := f.table.Entry(frame).Timestamp
		if ts < oldest {
			victim = frame
			oldest = ts
		}
	}

	return Victim{Frame: victim}, nil
}

// WSVictimFinder evicts pages that fell out of their owner's working set. When
// every resident page is in a working set, it takes a page from a workload
// other than the requester.
type WSVictimFinder struct {
	table vm.InvertedPageTable
	sets  []workingset.Set
}

// NewWSVictimFinder creates a working-set evictor. sets is indexed by PID.
func NewWSVictimFinder(
	table vm.InvertedPageTable,
	sets []workingset.Set,
) *WSVictimFinder {
	return &WSVictimFinder{
		table: table,
		sets:  sets,
	}
}

// FindVictim picks the victim frame for the requester.
func (f *WSVictimFinder) FindVictim(requester vm.PID) (Victim, error) {
	if frame, ok := f.findOutsideWorkingSet(); ok {
		return Victim{Frame: frame}, nil
	}

	for frame := 0; frame < f.table.NumFrames(); frame++ {
		e := f.table.Entry(frame)
		if !e.Valid || e.PID == requester {
			continue
		}

		f.setOf(e.PID).Remove(e.Page)

		return Victim{
			Frame:        frame,
			Disturbed:    true,
			DisturbedPID: e.PID,
		}, nil
	}

	return Victim{}, &UnsatisfiableError{
		WSSize:    f.setOf(requester).Capacity(),
		NumFrames: f.table.NumFrames(),
	}
}

func (f *WSVictimFinder) findOutsideWorkingSet() (int, bool) {
	for frame := 0; frame < f.table.NumFrames(); frame++ {
		e := f.table.Entry(frame)
		if !e.Valid {
			continue
		}

		if !f.setOf(e.PID).Contains(e.Page) {
			return frame, true
		}
	}

	return 0, false
}

func (f *WSVictimFinder) setOf(pid vm.PID) workingset.Set {
	if int(pid) >= len(f.sets) {
		panic(fmt.Sprintf("no working set for pid %d", pid))
	}

	return f.sets[pid]
}
