// Package scheduling replays the workload traces in round-robin time slices.
package scheduling

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/pagesim/mem/trace"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/sim"
)

// HookPosReference is triggered before each reference is resolved. The item
// is a ReferenceEvent.
var HookPosReference = &sim.HookPos{Name: "Reference"}

// A Resolver serves the references of the workloads.
type Resolver interface {
	Resolve(pid vm.PID, ref vm.Reference) (mmu.Result, error)
}

// A Workload is a program whose memory references are replayed from a trace.
type Workload struct {
	PID   vm.PID
	Name  string
	Trace trace.Reader
}

// ReferenceEvent describes a reference about to be resolved.
type ReferenceEvent struct {
	PID      vm.PID
	Workload string

	// Seq counts the references of this workload, Overall counts the
	// references of all workloads. Both start from 1.
	Seq     uint64
	Overall uint64

	Record trace.Record
}

// State is the state of a scheduler.
type State int

// The states of a scheduler.
const (
	StateRunning State = iota
	StateDone
)

func (s State) String() string {
	if s == StateDone {
		return "DONE"
	}

	return "RUNNING"
}

// RoundRobin lets each workload resolve up to a quantum of references in
// turn, until every trace is exhausted or the reference budget is spent.
type RoundRobin struct {
	*sim.HookableBase

	workloads []Workload
	exhausted []bool
	resolved  []uint64
	resolver  Resolver
	counters  *vm.Counters
	quantum   int
	budget    uint64

	turn  int
	state State
}

// State returns whether the scheduler has finished.
func (s *RoundRobin) State() State {
	return s.state
}

// Turn returns the number of turns taken so far.
func (s *RoundRobin) Turn() int {
	return s.turn
}

// Run takes turns until the scheduler is done. It stops at the first error.
func (s *RoundRobin) Run() error {
	for s.state != StateDone {
		if err := s.RunTurn(); err != nil {
			return err
		}
	}

	return nil
}

// RunTurn lets the next workload resolve up to a quantum of references. The
// turn of an exhausted workload resolves nothing.
func (s *RoundRobin) RunTurn() error {
	if s.state == StateDone {
		return nil
	}

	index := s.turn % len(s.workloads)
	s.turn++

	if !s.exhausted[index] {
		if err := s.runQuantum(index); err != nil {
			s.state = StateDone
			return err
		}
	}

	if s.budgetReached() || s.allExhausted() {
		s.state = StateDone
	}

	return nil
}

func (s *RoundRobin) runQuantum(index int) error {
	w := s.workloads[index]

	for i := 0; i < s.quantum; i++ {
		rec, err := w.Trace.Next()
		if errors.Is(err, io.EOF) {
			s.exhausted[index] = true
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read trace %s: %w", w.Name, err)
		}

		s.counters.References++
		s.counters.Resolved[w.PID]++
		s.resolved[index]++

		s.notify(w, rec)

		_, err = s.resolver.Resolve(w.PID, rec.Reference)
		if err != nil {
			return s.wrapResolveError(w, err)
		}

		if s.budgetReached() {
			return nil
		}
	}

	return nil
}

func (s *RoundRobin) notify(w Workload, rec trace.Record) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosReference,
		Item: ReferenceEvent{
			PID:      w.PID,
			Workload: w.Name,
			Seq:      s.resolved[w.PID],
			Overall:  s.counters.References,
			Record:   rec,
		},
	})
}

func (s *RoundRobin) wrapResolveError(w Workload, err error) error {
	var invalid *mmu.InvalidActionError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid reference detected in trace %s: %w",
			w.Name, err)
	}

	return fmt.Errorf("failed to resolve reference %d of %s: %w",
		s.resolved[w.PID], w.Name, err)
}

func (s *RoundRobin) budgetReached() bool {
	return s.budget > 0 && s.counters.References >= s.budget
}

func (s *RoundRobin) allExhausted() bool {
	for _, e := range s.exhausted {
		if !e {
			return false
		}
	}

	return true
}
