package scheduling

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// A Builder can build round-robin schedulers.
type Builder struct {
	resolver Resolver
	counters *vm.Counters
	quantum  int
	budget   uint64
}

// MakeBuilder creates a builder with a quantum of one reference and no
// reference budget.
func MakeBuilder() Builder {
	return Builder{
		quantum: 1,
	}
}

// WithResolver sets the component that resolves each reference.
func (b Builder) WithResolver(resolver Resolver) Builder {
	b.resolver = resolver
	return b
}

// WithCounters sets the counters shared with the rest of the simulation.
func (b Builder) WithCounters(counters *vm.Counters) Builder {
	b.counters = counters
	return b
}

// WithQuantum sets how many references a workload resolves before the next
// workload takes its turn.
func (b Builder) WithQuantum(quantum int) Builder {
	b.quantum = quantum
	return b
}

// WithBudget caps the total number of references resolved. Zero means no
// cap.
func (b Builder) WithBudget(budget uint64) Builder {
	b.budget = budget
	return b
}

// Build creates a scheduler over the workloads. Workload i must have PID i.
func (b Builder) Build(workloads []Workload) *RoundRobin {
	if b.resolver == nil {
		panic("round robin requires a resolver")
	}

	if b.counters == nil {
		panic("round robin requires counters")
	}

	if b.quantum < 1 {
		panic(fmt.Sprintf("quantum must be at least 1, got %d", b.quantum))
	}

	if len(workloads) == 0 {
		panic("round robin requires at least one workload")
	}

	if len(workloads) != len(b.counters.Resolved) {
		panic("counters do not match the number of workloads")
	}

	for i, w := range workloads {
		if int(w.PID) != i {
			panic(fmt.Sprintf("workload %s has pid %d at position %d",
				w.Name, w.PID, i))
		}
	}

	return &RoundRobin{
		HookableBase: sim.NewHookableBase(),
		workloads:    workloads,
		exhausted:    make([]bool, len(workloads)),
		resolved:     make([]uint64, len(workloads)),
		resolver:     b.resolver,
		counters:     b.counters,
		quantum:      b.quantum,
		budget:       b.budget,
	}
}
