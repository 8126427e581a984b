package simulation

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/instrumentation/eventlog"
	"github.com/sarchlab/pagesim/instrumentation/recording"
	"github.com/sarchlab/pagesim/mem/trace"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/scheduling"
	"github.com/sarchlab/pagesim/sim"
)

// Builder can be used to build a simulation.
type Builder struct {
	config       *Config
	idGenerator  sim.IDGenerator
	readers      map[string]trace.Reader
	eventLogger  *log.Logger
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		idGenerator: sim.NewParallelIDGenerator(),
	}
}

// WithConfig sets the parameters of the simulation.
func (b Builder) WithConfig(config *Config) Builder {
	b.config = config
	return b
}

// WithIDGenerator sets the generator of the simulation ID. The default
// generator gives every simulation a globally unique ID, so that several
// runs can share one recording.
func (b Builder) WithIDGenerator(g sim.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// WithTraceReader replays the references of the named workload from r
// instead of opening the path given in the configuration.
func (b Builder) WithTraceReader(name string, r trace.Reader) Builder {
	readers := make(map[string]trace.Reader, len(b.readers)+1)
	for k, v := range b.readers {
		readers[k] = v
	}

	readers[name] = r
	b.readers = readers

	return b
}

// WithEventLogger prints every reference and paging activity to the
// logger.
func (b Builder) WithEventLogger(logger *log.Logger) Builder {
	b.eventLogger = logger
	return b
}

// WithDataRecorder records the paging activities and the final report into
// the data recorder. The simulation closes the recorder when terminated.
func (b Builder) WithDataRecorder(recorder datarecording.DataRecorder) Builder {
	b.dataRecorder = recorder
	return b
}

// WithMonitor lets the monitor follow the progress of the simulation.
func (b Builder) WithMonitor(monitor *monitoring.Monitor) Builder {
	b.monitor = monitor
	return b
}

// Build validates the configuration, opens the traces and connects the
// components of a simulation.
func (b Builder) Build() (*Simulation, error) {
	if b.config == nil {
		return nil, &ConfigError{Field: "config", Reason: "not set"}
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	format, err := trace.NewFormat(b.config.FrameSize)
	if err != nil {
		return nil, &ConfigError{Field: "frame_size", Reason: err.Error()}
	}

	s := &Simulation{
		id:     b.idGenerator.Generate(),
		config: *b.config,
	}
	s.config.Traces = append([]TraceSpec(nil), b.config.Traces...)

	if err := b.buildMemory(s); err != nil {
		return nil, err
	}

	if err := b.openTraces(s, format); err != nil {
		return nil, err
	}

	s.scheduler = scheduling.MakeBuilder().
		WithResolver(s.mmu).
		WithCounters(s.counters).
		WithQuantum(s.config.Quantum).
		WithBudget(s.config.MaxReferences).
		Build(s.workloads)

	if err := b.attachInstruments(s); err != nil {
		return nil, errors.Join(err, s.closeTraces())
	}

	return s, nil
}

func (b Builder) buildMemory(s *Simulation) error {
	numWorkloads := len(s.config.Traces)

	frames, err := vm.NewFrameStore(s.config.NumFrames, s.config.FrameSize)
	if err != nil {
		return fmt.Errorf("failed to allocate main memory: %w", err)
	}

	s.frames = frames
	s.table = vm.NewInvertedPageTable(s.config.NumFrames)
	s.counters = vm.NewCounters(numWorkloads)

	mmuBuilder := mmu.MakeBuilder().
		WithPageTable(s.table).
		WithFrameStore(s.frames).
		WithCounters(s.counters)

	switch s.config.Algorithm {
	case AlgorithmWS:
		sets := make([]workingset.Set, numWorkloads)
		for i := range sets {
			sets[i] = workingset.New(s.config.WSSize)
		}

		s.workingSets = sets
		mmuBuilder = mmuBuilder.
			WithWorkingSets(sets).
			WithVictimFinder(eviction.NewWSVictimFinder(s.table, sets))
	default:
		mmuBuilder = mmuBuilder.
			WithVictimFinder(eviction.NewLRUVictimFinder(s.table))
	}

	s.mmu = mmuBuilder.Build("MMU")

	return nil
}

func (b Builder) openTraces(s *Simulation, format trace.Format) error {
	for i, spec := range s.config.Traces {
		reader, ok := b.readers[spec.Name]
		if !ok {
			rc, err := trace.Open(spec.Path, format)
			if err != nil {
				closeErr := s.closeTraces()
				return errors.Join(
					fmt.Errorf("failed to open trace of %s: %w", spec.Name, err),
					closeErr)
			}

			s.closers = append(s.closers, rc)
			reader = rc
		}

		s.workloads = append(s.workloads, scheduling.Workload{
			PID:   vm.PID(i),
			Name:  spec.Name,
			Trace: reader,
		})
	}

	return nil
}

func (b Builder) attachInstruments(s *Simulation) error {
	names := s.workloadNames()

	if b.eventLogger != nil {
		s.AcceptHook(eventlog.NewLogger(b.eventLogger, names))
	}

	if b.dataRecorder != nil {
		s.dataRecorder = b.dataRecorder
		s.recorder = recording.NewHook(b.dataRecorder, s.id, names)
		s.AcceptHook(s.recorder)

		s.execRecorder = datarecording.NewExecRecorder(b.dataRecorder, s.id)
		if err := s.execRecorder.Start(); err != nil {
			return err
		}
	}

	if b.monitor != nil {
		s.monitor = b.monitor
		s.progressBar = b.monitor.CreateProgressBar(
			"Simulation "+s.id, s.config.MaxReferences)

		board := monitoring.NewCounterBoard(names).
			WithProgressBar(s.progressBar)
		b.monitor.RegisterCounterBoard(board)
		s.AcceptHook(board)
	}

	return nil
}
