package mmu

import (
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
	"github.com/sarchlab/pagesim/sim"
)

// A Builder can build MMU components.
type Builder struct {
	pageTable    vm.InvertedPageTable
	frameStore   *vm.FrameStore
	victimFinder eviction.VictimFinder
	workingSets  []workingset.Set
	counters     *vm.Counters
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithPageTable sets the inverted page table that the MMU uses.
func (b Builder) WithPageTable(pageTable vm.InvertedPageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithFrameStore sets the physical memory.
func (b Builder) WithFrameStore(frameStore *vm.FrameStore) Builder {
	b.frameStore = frameStore
	return b
}

// WithVictimFinder sets the policy used when no frame is free.
func (b Builder) WithVictimFinder(victimFinder eviction.VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// WithWorkingSets sets the per-workload working sets, indexed by PID. Leave
// it unset when the eviction policy does not use working sets.
func (b Builder) WithWorkingSets(sets []workingset.Set) Builder {
	b.workingSets = sets
	return b
}

// WithCounters sets the counters shared with the rest of the simulation.
func (b Builder) WithCounters(counters *vm.Counters) Builder {
	b.counters = counters
	return b
}

// Build returns a newly created MMU component.
func (b Builder) Build(name string) *Comp {
	b.mustBeComplete()

	return &Comp{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		table:        b.pageTable,
		frames:       b.frameStore,
		victimFinder: b.victimFinder,
		workingSets:  b.workingSets,
		counters:     b.counters,
	}
}

func (b Builder) mustBeComplete() {
	switch {
	case b.pageTable == nil:
		panic("mmu requires a page table")
	case b.frameStore == nil:
		panic("mmu requires a frame store")
	case b.victimFinder == nil:
		panic("mmu requires a victim finder")
	case b.counters == nil:
		panic("mmu requires counters")
	}

	if b.pageTable.NumFrames() != b.frameStore.NumFrames() {
		panic("page table and frame store sizes do not match")
	}

	if b.workingSets != nil && len(b.workingSets) != len(b.counters.Faults) {
		panic("one working set per workload is required")
	}
}
