package datarecording

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// ExecTable is the table that keeps the properties of program executions.
const ExecTable = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecInfo is a property of a program execution, such as its command line.
type ExecInfo struct {
	Run      string
	Property string
	Value    string
}

// ExecRecorder records how and when a run was executed.
type ExecRecorder struct {
	recorder DataRecorder
	run      string
	entries  []ExecInfo
}

// NewExecRecorder creates an ExecRecorder that writes the properties of the
// given run into the recorder.
func NewExecRecorder(recorder DataRecorder, run string) *ExecRecorder {
	if !slices.Contains(recorder.ListTables(), ExecTable) {
		recorder.CreateTable(ExecTable, ExecInfo{})
	}

	return &ExecRecorder{
		recorder: recorder,
		run:      run,
	}
}

// Start captures the start time, the command line and the working directory
// of the current process.
func (e *ExecRecorder) Start() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	e.add("Start Time", time.Now().Format(execTimeFormat))
	e.add("Command", strings.Join(os.Args, " "))
	e.add("Working Directory", cwd)

	return nil
}

// End writes the captured properties along with the end time.
func (e *ExecRecorder) End() {
	e.add("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}

func (e *ExecRecorder) add(property, value string) {
	e.entries = append(e.entries, ExecInfo{
		Run:      e.run,
		Property: property,
		Value:    value,
	})
}
