package monitoring

import (
	"sync"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/scheduling"
	"github.com/sarchlab/pagesim/sim"
)

// WorkloadCounters counts the activities of one workload.
type WorkloadCounters struct {
	Name       string `json:"name"`
	References uint64 `json:"references"`
	Faults     uint64 `json:"faults"`
	Loads      uint64 `json:"loads"`
	Saves      uint64 `json:"saves"`
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`

	// Disturbed counts how often another workload took a frame from the
	// working set of this workload.
	Disturbed uint64 `json:"disturbed"`
}

// Snapshot is a copy of the counters of a CounterBoard.
type Snapshot struct {
	References uint64             `json:"references"`
	Faults     uint64             `json:"faults"`
	Loads      uint64             `json:"loads"`
	Saves      uint64             `json:"saves"`
	Workloads  []WorkloadCounters `json:"workloads"`
}

// A CounterBoard is a hook that counts the activities of a simulation so
// that the monitoring server can read them while the simulation runs.
type CounterBoard struct {
	lock     sync.RWMutex
	counters Snapshot
	progress *ProgressBar
}

// NewCounterBoard creates a board for the workloads, indexed by PID.
func NewCounterBoard(names []string) *CounterBoard {
	b := &CounterBoard{}

	for _, n := range names {
		b.counters.Workloads = append(b.counters.Workloads,
			WorkloadCounters{Name: n})
	}

	return b
}

// WithProgressBar lets the board move the bar forward as references are
// resolved.
func (b *CounterBoard) WithProgressBar(bar *ProgressBar) *CounterBoard {
	b.progress = bar
	return b
}

// Func counts the hooked activity.
func (b *CounterBoard) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case scheduling.HookPosReference:
		evt := ctx.Item.(scheduling.ReferenceEvent)
		b.update(evt.PID, func(s *Snapshot, w *WorkloadCounters) {
			s.References++
			w.References++
		})

		if b.progress != nil {
			b.progress.IncrementInProgress(1)
		}
	case mmu.HookPosFault:
		b.updatePage(ctx, func(s *Snapshot, w *WorkloadCounters) {
			s.Faults++
			w.Faults++
		})
	case mmu.HookPosLoad:
		b.updatePage(ctx, func(s *Snapshot, w *WorkloadCounters) {
			s.Loads++
			w.Loads++
		})
	case mmu.HookPosSave:
		b.updatePage(ctx, func(s *Snapshot, w *WorkloadCounters) {
			s.Saves++
			w.Saves++
		})
	case mmu.HookPosRead:
		b.updatePage(ctx, func(_ *Snapshot, w *WorkloadCounters) {
			w.Reads++
		})
		b.finishReference()
	case mmu.HookPosWrite:
		b.updatePage(ctx, func(_ *Snapshot, w *WorkloadCounters) {
			w.Writes++
		})
		b.finishReference()
	case mmu.HookPosDisturb:
		b.update(ctx.Detail.(vm.PID), func(_ *Snapshot, w *WorkloadCounters) {
			w.Disturbed++
		})
	}
}

func (b *CounterBoard) finishReference() {
	if b.progress != nil {
		b.progress.MoveInProgressToFinished(1)
	}
}

func (b *CounterBoard) updatePage(
	ctx sim.HookCtx,
	f func(s *Snapshot, w *WorkloadCounters),
) {
	evt := ctx.Item.(mmu.PageEvent)
	b.update(evt.PID, f)
}

func (b *CounterBoard) update(
	pid vm.PID,
	f func(s *Snapshot, w *WorkloadCounters),
) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if int(pid) >= len(b.counters.Workloads) {
		return
	}

	f(&b.counters, &b.counters.Workloads[pid])
}

// Snapshot returns a copy of the counters.
func (b *CounterBoard) Snapshot() Snapshot {
	b.lock.RLock()
	defer b.lock.RUnlock()

	s := b.counters
	s.Workloads = append([]WorkloadCounters(nil), b.counters.Workloads...)

	return s
}
