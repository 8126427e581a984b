// Package mmu resolves page references against the inverted page table.
package mmu

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
	"github.com/sarchlab/pagesim/sim"
)

// Comp is the reference resolution engine. It finds or loads the referenced
// page, evicting another page when memory is full, and applies the action.
type Comp struct {
	*sim.HookableBase

	name         string
	table        vm.InvertedPageTable
	frames       *vm.FrameStore
	victimFinder eviction.VictimFinder
	workingSets  []workingset.Set
	counters     *vm.Counters
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// PageTable returns the inverted page table the MMU maintains.
func (c *Comp) PageTable() vm.InvertedPageTable {
	return c.table
}

// Resolve serves one reference of a workload. The frame's timestamp is set
// to the current reference count, so the caller must count the reference
// before resolving it.
func (c *Comp) Resolve(pid vm.PID, ref vm.Reference) (Result, error) {
	c.pidMustBeKnown(pid)

	res := Result{}

	frame, found := c.table.Find(pid, ref.Page)
	if !found {
		res.Fault = true
		c.counters.Faults[pid]++
		c.invoke(HookPosFault, pid, ref.Page, -1, nil)

		var err error

		frame, err = c.allocateFrame(pid, &res)
		if err != nil {
			return res, err
		}

		c.load(frame, pid, ref.Page)
	}

	res.Frame = frame
	c.table.Touch(frame, c.counters.References)

	if _, err := c.frames.Locate(frame, ref.Offset); err != nil {
		return res, fmt.Errorf("reference to page %d of pid %d: %w",
			ref.Page, pid, err)
	}

	switch ref.Action {
	case vm.ActionRead:
		c.invoke(HookPosRead, pid, ref.Page, frame, nil)
	case vm.ActionWrite:
		c.table.MarkModified(frame)
		c.invoke(HookPosWrite, pid, ref.Page, frame, nil)
	default:
		return res, &InvalidActionError{PID: pid, Action: ref.Action}
	}

	if c.workingSets != nil {
		c.workingSets[pid].Insert(ref.Page)
	}

	return res, nil
}

func (c *Comp) allocateFrame(pid vm.PID, res *Result) (int, error) {
	if frame, found := c.table.FindFree(); found {
		return frame, nil
	}

	victim, err := c.victimFinder.FindVictim(pid)
	if err != nil {
		return -1, err
	}

	res.Evicted = true
	e := c.table.Entry(victim.Frame)

	if victim.Disturbed {
		c.invoke(HookPosDisturb, pid, e.Page, victim.Frame, victim.DisturbedPID)
	}

	if e.Modified {
		res.Saved = true
		c.counters.Saves++
		c.invoke(HookPosSave, e.PID, e.Page, victim.Frame, nil)
	}

	return victim.Frame, nil
}

func (c *Comp) load(frame int, pid vm.PID, page uint64) {
	c.table.Install(frame, pid, page)
	c.counters.Loads++
	c.invoke(HookPosLoad, pid, page, frame, nil)
}

func (c *Comp) invoke(
	pos *sim.HookPos,
	pid vm.PID,
	page uint64,
	frame int,
	detail any,
) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item: PageEvent{
			PID:   pid,
			Page:  page,
			Frame: frame,
			Time:  c.counters.References,
		},
		Detail: detail,
	})
}

func (c *Comp) pidMustBeKnown(pid vm.PID) {
	if int(pid) >= len(c.counters.Faults) {
		panic(fmt.Sprintf("%s: unknown pid %d", c.name, pid))
	}
}
