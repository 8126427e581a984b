package simulation

// WorkloadReport holds the statistics of one workload.
type WorkloadReport struct {
	Name     string
	Faults   uint64
	Resolved uint64
}

// Report holds the statistics of a simulation run.
type Report struct {
	Algorithm Algorithm

	// References is the number of references resolved by all workloads.
	References uint64

	// Loads counts the pages read from the disk. Saves counts the modified
	// pages written back to the disk.
	Loads uint64
	Saves uint64

	Workloads []WorkloadReport

	UsedFrames int
	NumFrames  int
}

// TotalFaults sums the page faults of all workloads.
func (r Report) TotalFaults() uint64 {
	var total uint64
	for _, w := range r.Workloads {
		total += w.Faults
	}

	return total
}
