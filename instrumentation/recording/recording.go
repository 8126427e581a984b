// Package recording stores the activities of a simulation through a data
// recorder, so that runs can be analyzed after they finish.
package recording

import (
	"fmt"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/scheduling"
	"github.com/sarchlab/pagesim/sim"
)

// The tables written by a Hook.
const (
	PageEventTable = "page_events"
	WorkloadTable  = "workload_reports"
)

// The kinds of page events.
const (
	KindReference = "REFERENCE"
	KindFault     = "FAULT"
	KindLoad      = "LOAD"
	KindSave      = "SAVE"
	KindRead      = "READ"
	KindWrite     = "WRITE"
	KindDisturb   = "DISTURB"
)

// PageEventRow is a row of the page_events table.
type PageEventRow struct {
	ID         string
	Simulation string
	Time       uint64
	Kind       string
	Workload   string
	Page       uint64
	Frame      int

	// Detail holds the raw record of a reference and the disturbed workload
	// of a disturbance.
	Detail string
}

// WorkloadRow is a row of the workload_reports table.
type WorkloadRow struct {
	Simulation string
	Algorithm  string
	NumFrames  int
	Workload   string
	Faults     uint64
	Resolved   uint64
	Loads      uint64
	Saves      uint64
	UsedFrames int
}

// Hook records every reference and paging activity as a page_events row.
type Hook struct {
	recorder     datarecording.DataRecorder
	idGenerator  sim.IDGenerator
	simulationID string
	names        []string
}

// NewHook creates the tables in the recorder and returns a hook writing
// into them. The names of the workloads are indexed by PID.
func NewHook(
	recorder datarecording.DataRecorder,
	simulationID string,
	names []string,
) *Hook {
	h := &Hook{
		recorder:     recorder,
		idGenerator:  sim.NewSequentialIDGenerator(),
		simulationID: simulationID,
		names:        names,
	}

	recorder.CreateTable(PageEventTable, PageEventRow{})
	recorder.CreateTable(WorkloadTable, WorkloadRow{})

	return h
}

// Func records the hooked activity.
func (h *Hook) Func(ctx sim.HookCtx) {
	if ctx.Pos == scheduling.HookPosReference {
		evt := ctx.Item.(scheduling.ReferenceEvent)
		h.insert(PageEventRow{
			Time:     evt.Overall,
			Kind:     KindReference,
			Workload: evt.Workload,
			Page:     evt.Record.Reference.Page,
			Frame:    -1,
			Detail:   evt.Record.Raw,
		})

		return
	}

	kind, ok := pageEventKinds[ctx.Pos]
	if !ok {
		return
	}

	evt := ctx.Item.(mmu.PageEvent)
	row := PageEventRow{
		Time:     evt.Time,
		Kind:     kind,
		Workload: h.name(evt.PID),
		Page:     evt.Page,
		Frame:    evt.Frame,
	}

	if disturbed, ok := ctx.Detail.(vm.PID); ok {
		row.Detail = h.name(disturbed)
	}

	h.insert(row)
}

// RecordWorkload writes the final statistics of a workload.
func (h *Hook) RecordWorkload(row WorkloadRow) {
	row.Simulation = h.simulationID
	h.recorder.InsertData(WorkloadTable, row)
}

func (h *Hook) insert(row PageEventRow) {
	row.ID = h.idGenerator.Generate()
	row.Simulation = h.simulationID
	h.recorder.InsertData(PageEventTable, row)
}

func (h *Hook) name(pid vm.PID) string {
	if int(pid) < len(h.names) {
		return h.names[pid]
	}

	return fmt.Sprintf("pid%d", pid)
}

var pageEventKinds = map[*sim.HookPos]string{
	mmu.HookPosFault:   KindFault,
	mmu.HookPosLoad:    KindLoad,
	mmu.HookPosSave:    KindSave,
	mmu.HookPosRead:    KindRead,
	mmu.HookPosWrite:   KindWrite,
	mmu.HookPosDisturb: KindDisturb,
}
