// Package vm provides the models for demand-paged virtual memory: references,
// the frame store and the inverted page table.
package vm

import "fmt"

// PID stands for Process ID. In pagesim it identifies a workload and is also
// its index into per-workload tables.
type PID uint32

// Action is what a reference does to the addressed data.
type Action byte

// The actions a trace may carry.
const (
	ActionRead  Action = 'R'
	ActionWrite Action = 'W'
)

// Valid tells if the action is one of the known actions.
func (a Action) Valid() bool {
	return a == ActionRead || a == ActionWrite
}

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "READ"
	case ActionWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("INVALID(%q)", byte(a))
	}
}

// A Reference asks to perform an action on the data that starts at Offset
// within page Page.
type Reference struct {
	Page   uint64
	Offset uint64
	Action Action
}

// Counters aggregates the statistics of one simulation run. Per-workload
// slices are indexed by PID.
type Counters struct {
	References uint64
	Loads      uint64
	Saves      uint64
	Faults     []uint64
	Resolved   []uint64
}

// NewCounters creates zeroed counters for numWorkloads workloads.
func NewCounters(numWorkloads int) *Counters {
	return &Counters{
		Faults:   make([]uint64, numWorkloads),
		Resolved: make([]uint64, numWorkloads),
	}
}

// Clone returns a deep copy of the counters.
func (c *Counters) Clone() Counters {
	clone := *c
	clone.Faults = append([]uint64(nil), c.Faults...)
	clone.Resolved = append([]uint64(nil), c.Resolved...)

	return clone
}
