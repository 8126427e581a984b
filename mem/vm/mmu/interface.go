package mmu

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// Hook positions triggered while resolving a reference. The item of each
// hook is a PageEvent.
var (
	// HookPosFault is triggered when the referenced page is not resident.
	HookPosFault = &sim.HookPos{Name: "MMU Fault"}

	// HookPosLoad is triggered when a page is brought into a frame.
	HookPosLoad = &sim.HookPos{Name: "MMU Load"}

	// HookPosSave is triggered when a modified page is written back before
	// its frame is reused. The event carries the evicted page.
	HookPosSave = &sim.HookPos{Name: "MMU Save"}

	// HookPosRead is triggered when a read is applied.
	HookPosRead = &sim.HookPos{Name: "MMU Read"}

	// HookPosWrite is triggered when a write is applied.
	HookPosWrite = &sim.HookPos{Name: "MMU Write"}

	// HookPosDisturb is triggered when the requester takes a frame from the
	// working set of another workload. The detail is the disturbed vm.PID.
	HookPosDisturb = &sim.HookPos{Name: "MMU Disturb"}
)

// A PageEvent describes one paging activity.
type PageEvent struct {
	PID   vm.PID
	Page  uint64
	Frame int

	// Time is the global reference count when the event happened.
	Time uint64
}

// Result summarizes how a reference was resolved.
type Result struct {
	Frame   int
	Fault   bool
	Evicted bool
	Saved   bool
}

// InvalidActionError is returned when a reference carries an action other
// than read or write.
type InvalidActionError struct {
	PID    vm.PID
	Action vm.Action
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q in reference of pid %d",
		byte(e.Action), e.PID)
}
