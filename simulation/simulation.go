// Package simulation connects the memory, the scheduler and the
// instrumentation of a pagesim run.
package simulation

import (
	"errors"
	"io"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/instrumentation/recording"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/scheduling"
	"github.com/sarchlab/pagesim/sim"
)

// A Simulation owns the state of one run: the main memory, the inverted
// page table, the working sets, the counters and the workloads replaying
// their traces.
type Simulation struct {
	id     string
	config Config

	counters    *vm.Counters
	frames      *vm.FrameStore
	table       vm.InvertedPageTable
	workingSets []workingset.Set
	mmu         *mmu.Comp
	scheduler   *scheduling.RoundRobin
	workloads   []scheduling.Workload
	closers     []io.Closer

	dataRecorder datarecording.DataRecorder
	recorder     *recording.Hook
	execRecorder *datarecording.ExecRecorder
	monitor      *monitoring.Monitor
	progressBar  *monitoring.ProgressBar
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the configuration the simulation is built from.
func (s *Simulation) Config() Config {
	return s.config
}

// MMU returns the reference resolution engine.
func (s *Simulation) MMU() *mmu.Comp {
	return s.mmu
}

// Scheduler returns the scheduler that replays the traces.
func (s *Simulation) Scheduler() *scheduling.RoundRobin {
	return s.scheduler
}

// Workloads returns the workloads, ordered by PID.
func (s *Simulation) Workloads() []scheduling.Workload {
	return s.workloads
}

// WorkingSets returns the working sets indexed by PID. It is nil unless the
// algorithm is WS.
func (s *Simulation) WorkingSets() []workingset.Set {
	return s.workingSets
}

// Counters returns a copy of the current counters.
func (s *Simulation) Counters() vm.Counters {
	return s.counters.Clone()
}

// AcceptHook registers a hook on both the scheduler and the MMU.
func (s *Simulation) AcceptHook(hook sim.Hook) {
	s.scheduler.AcceptHook(hook)
	s.mmu.AcceptHook(hook)
}

// Run replays the traces until they are exhausted or the reference budget
// is spent. The report is returned even if the run stops on an error.
func (s *Simulation) Run() (Report, error) {
	runErr := s.scheduler.Run()
	report := s.Report()

	if s.recorder != nil {
		s.recordReport(report)
	}

	if s.progressBar != nil {
		s.monitor.CompleteProgressBar(s.progressBar)
		s.progressBar = nil
	}

	return report, runErr
}

// Report summarizes the counters collected so far.
func (s *Simulation) Report() Report {
	report := Report{
		Algorithm:  s.config.Algorithm,
		References: s.counters.References,
		Loads:      s.counters.Loads,
		Saves:      s.counters.Saves,
		UsedFrames: s.table.UsedFrames(),
		NumFrames:  s.table.NumFrames(),
	}

	for _, w := range s.workloads {
		report.Workloads = append(report.Workloads, WorkloadReport{
			Name:     w.Name,
			Faults:   s.counters.Faults[w.PID],
			Resolved: s.counters.Resolved[w.PID],
		})
	}

	return report
}

func (s *Simulation) recordReport(report Report) {
	for _, w := range report.Workloads {
		s.recorder.RecordWorkload(recording.WorkloadRow{
			Algorithm:  string(report.Algorithm),
			NumFrames:  report.NumFrames,
			Workload:   w.Name,
			Faults:     w.Faults,
			Resolved:   w.Resolved,
			Loads:      report.Loads,
			Saves:      report.Saves,
			UsedFrames: report.UsedFrames,
		})
	}

	s.dataRecorder.Flush()
}

// Terminate closes the traces opened by the simulation and the data
// recorder. The end time of the run is recorded before the recorder is
// closed.
func (s *Simulation) Terminate() error {
	err := s.closeTraces()

	if s.dataRecorder != nil {
		s.execRecorder.End()
		s.dataRecorder.Flush()
		err = errors.Join(err, s.dataRecorder.Close())
		s.dataRecorder = nil
	}

	return err
}

func (s *Simulation) closeTraces() error {
	var errs []error

	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}

	s.closers = nil

	return errors.Join(errs...)
}

func (s *Simulation) workloadNames() []string {
	names := make([]string, len(s.workloads))
	for i, w := range s.workloads {
		names[i] = w.Name
	}

	return names
}
