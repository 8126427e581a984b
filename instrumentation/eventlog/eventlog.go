// Package eventlog prints the activities of a simulation as a readable log.
package eventlog

import (
	"log"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/scheduling"
	"github.com/sarchlab/pagesim/sim"
)

// Logger is a hook that writes one line for every reference and every
// paging activity.
type Logger struct {
	sim.LogHookBase

	names []string
}

// NewLogger creates a Logger writing into logger. The names of the
// workloads are indexed by PID.
func NewLogger(logger *log.Logger, names []string) *Logger {
	h := new(Logger)
	h.Logger = logger
	h.names = names

	return h
}

// Func writes the line describing the hooked activity.
func (h *Logger) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case scheduling.HookPosReference:
		evt := ctx.Item.(scheduling.ReferenceEvent)
		h.Printf("Reference %d of %s (%d overall): %s",
			evt.Seq, evt.Workload, evt.Overall, evt.Record.Raw)
	case mmu.HookPosLoad:
		evt := ctx.Item.(mmu.PageEvent)
		h.Printf("LOAD page %d from hard disk to frame %d of main memory",
			evt.Page, evt.Frame)
	case mmu.HookPosSave:
		evt := ctx.Item.(mmu.PageEvent)
		h.Printf("SAVE page %d from frame %d of main memory to hard disk",
			evt.Page, evt.Frame)
	case mmu.HookPosRead:
		evt := ctx.Item.(mmu.PageEvent)
		h.Printf("READ page %d from frame %d of main memory",
			evt.Page, evt.Frame)
	case mmu.HookPosWrite:
		evt := ctx.Item.(mmu.PageEvent)
		h.Printf("WRITE page %d to frame %d of main memory",
			evt.Page, evt.Frame)
	case mmu.HookPosDisturb:
		evt := ctx.Item.(mmu.PageEvent)
		disturbed := ctx.Detail.(vm.PID)
		h.Printf("NOTE: Due to memory restriction %s had to disturb "+
			"%s's working set in order to keep running",
			h.name(evt.PID), h.name(disturbed))
	}
}

func (h *Logger) name(pid vm.PID) string {
	if int(pid) < len(h.names) {
		return h.names[pid]
	}

	return "unknown"
}
