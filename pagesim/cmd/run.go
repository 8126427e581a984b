package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/simulation"
	"github.com/spf13/cobra"
)

const instructions = `To execute using LRU algorithm:
pagesim run LRU <num_of_frames> <q> <max_num_of_references>

To execute using WS algorithm:
pagesim run WS <num_of_frames> <q> <ws_size> <max_num_of_references>

NOTE: It is optional to provide <max_num_of_references>
`

type runOptions struct {
	traces      []string
	frameSize   uint64
	quiet       bool
	record      bool
	recordFile  string
	monitor     bool
	monitorPort int
	openBrowser bool
	envFiles    []string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use: "run LRU|WS <num_of_frames> <q> [<ws_size>] " +
			"[<max_num_of_references>]",
		Short: "Simulate the paging of the workload traces.",
		Long: instructions + `
Without arguments, the parameters are read from the PAGESIM_* environment
variables.`,
		Args: cobra.MaximumNArgs(5),
		RunE: opts.run,
	}

	flags := runCmd.Flags()
	flags.StringArrayVar(&opts.traces, "trace", nil,
		"a workload trace as name=path, repeatable "+
			"(default bzip=bzip.trace and gcc=gcc.trace)")
	flags.Uint64Var(&opts.frameSize, "frame-size", 0,
		"the size of a frame and of a page in bytes (default 4096)")
	flags.BoolVar(&opts.quiet, "quiet", false,
		"do not print every reference and paging activity")
	flags.BoolVar(&opts.record, "record", false,
		"record the paging activities into a SQLite database")
	flags.StringVar(&opts.recordFile, "record-file", "",
		"the database name used by --record, without the .sqlite3 suffix")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the progress of the simulation over HTTP")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"the port of the monitoring server, random if not set")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")
	flags.StringArrayVar(&opts.envFiles, "env-file", nil,
		"a dotenv file to load the PAGESIM_* variables from")

	return runCmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	config, err := o.buildConfig(args)
	if err != nil {
		var configErr *simulation.ConfigError
		if errors.As(err, &configErr) {
			fmt.Fprint(out, instructions)
		}

		return err
	}

	printSpecifications(out, config)

	s, monitor, err := o.buildSimulation(out, config)
	if err != nil {
		return err
	}

	defer func() {
		if terminateErr := s.Terminate(); terminateErr != nil {
			log.Printf("failed to terminate simulation: %v", terminateErr)
		}
	}()

	if monitor != nil {
		if _, err := monitor.StartServer(); err != nil {
			return err
		}

		defer stopMonitor(context.Background(), monitor)
	}

	fmt.Fprint(out, "\nSimulation:\n")

	report, err := s.Run()
	if err != nil {
		printFailure(out, s, err)
		return err
	}

	printResults(out, report)

	return nil
}

func (o *runOptions) buildConfig(args []string) (*simulation.Config, error) {
	config, err := simulation.LoadConfigFromEnv(o.envFiles...)
	if err != nil {
		return nil, err
	}

	if err := applyArgs(config, args); err != nil {
		return nil, err
	}

	if len(o.traces) > 0 {
		config.Traces = nil

		for _, t := range o.traces {
			spec, err := simulation.ParseTraceSpec(t)
			if err != nil {
				return nil, err
			}

			config.Traces = append(config.Traces, spec)
		}
	}

	if o.frameSize != 0 {
		config.FrameSize = o.frameSize
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (o *runOptions) buildSimulation(
	out io.Writer,
	config *simulation.Config,
) (*simulation.Simulation, *monitoring.Monitor, error) {
	builder := simulation.MakeBuilder().WithConfig(config)

	if !o.quiet {
		builder = builder.WithEventLogger(log.New(out, "", 0))
	}

	var recorder datarecording.DataRecorder

	if o.record {
		var err error

		recorder, err = datarecording.New(o.recordFile)
		if err != nil {
			return nil, nil, err
		}

		builder = builder.WithDataRecorder(recorder)
	}

	var monitor *monitoring.Monitor

	if o.monitor {
		monitor = monitoring.NewMonitor()
		if o.monitorPort != 0 {
			monitor.WithPortNumber(o.monitorPort)
		}

		if o.openBrowser {
			monitor.WithBrowser()
		}

		builder = builder.WithMonitor(monitor)
	}

	s, err := builder.Build()
	if err != nil {
		if recorder != nil {
			err = errors.Join(err, recorder.Close())
		}

		return nil, nil, err
	}

	return s, monitor, nil
}

type serverStopper interface {
	StopServer(ctx context.Context) error
}

func stopMonitor(ctx context.Context, monitor serverStopper) {
	if err := monitor.StopServer(ctx); err != nil {
		log.Printf("failed to stop monitoring server: %v", err)
	}
}

// applyArgs overrides the configuration with the positional arguments:
// LRU <num_of_frames> <q> [<max_num_of_references>] or
// WS <num_of_frames> <q> <ws_size> [<max_num_of_references>].
func applyArgs(config *simulation.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}

	if len(args) < 3 {
		return &simulation.ConfigError{
			Field:  "arguments",
			Reason: fmt.Sprintf("expecting at least 3, got %d", len(args)),
		}
	}

	algorithm, err := simulation.ParseAlgorithm(args[0])
	if err != nil {
		return err
	}

	config.Algorithm = algorithm

	if config.NumFrames, err = parseInt("num_of_frames", args[1]); err != nil {
		return err
	}

	if config.Quantum, err = parseInt("q", args[2]); err != nil {
		return err
	}

	rest := args[3:]

	if algorithm == simulation.AlgorithmWS {
		if len(rest) == 0 {
			return &simulation.ConfigError{Field: "ws_size", Reason: "missing"}
		}

		if config.WSSize, err = parseInt("ws_size", rest[0]); err != nil {
			return err
		}

		rest = rest[1:]
	}

	switch len(rest) {
	case 0:
		return nil
	case 1:
		config.MaxReferences, err = strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return &simulation.ConfigError{
				Field:  "max_num_of_references",
				Reason: fmt.Sprintf("%q is not a non-negative integer", rest[0]),
			}
		}

		return nil
	default:
		return &simulation.ConfigError{
			Field:  "arguments",
			Reason: fmt.Sprintf("too many arguments for %s", algorithm),
		}
	}
}

func parseInt(field, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, &simulation.ConfigError{
			Field:  field,
			Reason: fmt.Sprintf("%q is not an integer", arg),
		}
	}

	return n, nil
}

func printSpecifications(w io.Writer, config *simulation.Config) {
	fmt.Fprint(w, "\nSpecifications:\n")
	fmt.Fprintf(w, "Algorithm: %s\n", config.Algorithm)
	fmt.Fprintf(w, "Number of frames: %d\n", config.NumFrames)
	fmt.Fprintf(w, "Number q: %d\n", config.Quantum)

	if config.Algorithm == simulation.AlgorithmWS {
		fmt.Fprintf(w, "Working set size: %d\n", config.WSSize)
	}

	if config.MaxReferences > 0 {
		fmt.Fprintf(w, "Max number of references: %d\n", config.MaxReferences)
	}
}

func printFailure(w io.Writer, s *simulation.Simulation, err error) {
	var unsatisfiable *eviction.UnsatisfiableError
	var invalid *mmu.InvalidActionError

	switch {
	case errors.As(err, &unsatisfiable):
		fmt.Fprintf(w,
			"ERROR: Given working set size (%d) cannot be satisfied by %d frames\n",
			unsatisfiable.WSSize, unsatisfiable.NumFrames)
	case errors.As(err, &invalid):
		fmt.Fprintf(w, "Invalid reference detected in file %s\n",
			s.Workloads()[invalid.PID].Name)
	}
}

func printResults(w io.Writer, report simulation.Report) {
	fmt.Fprint(w, "\nResults:\n")
	fmt.Fprintf(w,
		"LOAD from hard disk to main memory (aka read from HD): %d pages\n",
		report.Loads)
	fmt.Fprintf(w,
		"SAVE from main memory to hard disk (aka write to HD): %d pages\n",
		report.Saves)

	for _, wl := range report.Workloads {
		fmt.Fprintf(w, "%s: %d page faults, %d resolved references\n",
			wl.Name, wl.Faults, wl.Resolved)
	}

	fmt.Fprintf(w,
		"During this simulation: %d frames were used of %d available frames\n\n",
		report.UsedFrames, report.NumFrames)
}
