package simulation_test

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/trace"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/sim"
	"github.com/sarchlab/pagesim/simulation"
)

var format4K, _ = trace.NewFormat(4096)

func traceOf(records ...string) trace.Reader {
	text := strings.Join(records, "\n")
	if len(records) > 0 {
		text += "\n"
	}

	return trace.NewReader(strings.NewReader(text), format4K)
}

func newLineHook(w io.Writer) sim.Hook {
	return sim.HookFunc(func(ctx sim.HookCtx) {
		fmt.Fprintln(w, ctx.Pos.Name)
	})
}

func config(algorithm simulation.Algorithm, frames, q int) *simulation.Config {
	c := simulation.DefaultConfig()
	c.Algorithm = algorithm
	c.NumFrames = frames
	c.Quantum = q

	return c
}

var _ = Describe("Simulation", func() {
	var s *simulation.Simulation

	build := func(c *simulation.Config, bzip, gcc trace.Reader) {
		var err error

		s, err = simulation.MakeBuilder().
			WithConfig(c).
			WithTraceReader("bzip", bzip).
			WithTraceReader("gcc", gcc).
			Build()
		Expect(err).ToNot(HaveOccurred())
	}

	AfterEach(func() {
		if s != nil {
			Expect(s.Terminate()).To(Succeed())
			s = nil
		}
	})

	It("should reject an invalid configuration", func() {
		_, err := simulation.MakeBuilder().
			WithConfig(config(simulation.AlgorithmLRU, 0, 1)).
			Build()

		var configErr *simulation.ConfigError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("frames"))
	})

	It("should reject a missing configuration", func() {
		_, err := simulation.MakeBuilder().Build()

		Expect(err).To(BeAssignableToTypeOf(&simulation.ConfigError{}))
	})

	It("should keep its own copy of the configuration", func() {
		c := config(simulation.AlgorithmLRU, 2, 1)
		build(c, traceOf(), traceOf())

		c.Traces[0].Name = "changed"

		Expect(s.Config().Traces[0].Name).To(Equal("bzip"))
		Expect(s.ID()).ToNot(BeEmpty())
	})

	It("should take its ID from the ID generator", func() {
		var err error
		s, err = simulation.MakeBuilder().
			WithConfig(config(simulation.AlgorithmLRU, 2, 1)).
			WithIDGenerator(sim.NewSequentialIDGenerator()).
			WithTraceReader("bzip", traceOf()).
			WithTraceReader("gcc", traceOf()).
			Build()

		Expect(err).ToNot(HaveOccurred())
		Expect(s.ID()).To(Equal("1"))
	})

	It("should give every simulation a unique ID by default", func() {
		build(config(simulation.AlgorithmLRU, 2, 1), traceOf(), traceOf())
		first := s.ID()
		Expect(s.Terminate()).To(Succeed())

		build(config(simulation.AlgorithmLRU, 2, 1), traceOf(), traceOf())

		Expect(s.ID()).To(HaveLen(20))
		Expect(s.ID()).ToNot(Equal(first))
	})

	It("should assign PIDs in trace order", func() {
		build(config(simulation.AlgorithmLRU, 2, 1), traceOf(), traceOf())

		Expect(s.Workloads()).To(HaveLen(2))
		Expect(s.Workloads()[0].Name).To(Equal("bzip"))
		Expect(int(s.Workloads()[1].PID)).To(Equal(1))
		Expect(s.WorkingSets()).To(BeNil())
	})

	It("should load four pages into two frames without saving", func() {
		build(config(simulation.AlgorithmLRU, 2, 1),
			traceOf("00000000 R", "00001000 R"),
			traceOf("00000000 R", "00001000 R"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Loads).To(Equal(uint64(4)))
		Expect(report.Saves).To(BeZero())
		Expect(report.References).To(Equal(uint64(4)))
		Expect(report.UsedFrames).To(Equal(2))
		Expect(report.NumFrames).To(Equal(2))
		Expect(report.Workloads).To(Equal([]simulation.WorkloadReport{
			{Name: "bzip", Faults: 2, Resolved: 2},
			{Name: "gcc", Faults: 2, Resolved: 2},
		}))
		Expect(report.TotalFaults()).To(Equal(uint64(4)))
	})

	It("should fault on every reference with a single frame", func() {
		build(config(simulation.AlgorithmLRU, 1, 1),
			traceOf("00000000 R", "00001000 R"),
			traceOf("00002000 R"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Loads).To(Equal(uint64(3)))
		Expect(report.TotalFaults()).To(Equal(uint64(3)))
		Expect(report.Saves).To(BeZero())
		Expect(report.UsedFrames).To(Equal(1))
	})

	It("should save only the pages written before their eviction", func() {
		build(config(simulation.AlgorithmLRU, 1, 1),
			traceOf("00000010 W", "00001000 R"),
			traceOf("00002000 R"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Saves).To(Equal(uint64(1)))
		Expect(report.Loads).To(Equal(uint64(3)))
	})

	It("should hit on a repeated reference", func() {
		build(config(simulation.AlgorithmLRU, 2, 2),
			traceOf("00000000 R", "00000004 R"),
			traceOf())

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Loads).To(Equal(uint64(1)))
		Expect(report.Workloads[0]).To(Equal(
			simulation.WorkloadReport{Name: "bzip", Faults: 1, Resolved: 2}))
	})

	It("should stop at the reference budget", func() {
		c := config(simulation.AlgorithmLRU, 4, 1)
		c.MaxReferences = 3
		build(c,
			traceOf("00000000 R", "00001000 R", "00002000 R"),
			traceOf("00010000 R", "00011000 R", "00012000 R"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.References).To(Equal(uint64(3)))
		Expect(report.Workloads[0].Resolved).To(Equal(uint64(2)))
		Expect(report.Workloads[1].Resolved).To(Equal(uint64(1)))
	})

	It("should spend the budget across time slices", func() {
		c := config(simulation.AlgorithmLRU, 1, 2)
		c.MaxReferences = 5
		build(c,
			traceOf("00000000 W", "00001000 R", "00002000 R"),
			traceOf("00010000 R", "00011000 R", "00012000 R"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.References).To(Equal(uint64(5)))
		Expect(report.Loads).To(Equal(uint64(5)))
		Expect(report.Saves).To(Equal(uint64(1)))
		Expect(report.Workloads).To(Equal([]simulation.WorkloadReport{
			{Name: "bzip", Faults: 3, Resolved: 3},
			{Name: "gcc", Faults: 2, Resolved: 2},
		}))
	})

	It("should never use more frames than loaded pages", func() {
		build(config(simulation.AlgorithmLRU, 3, 2),
			traceOf("00000000 R", "00001000 W", "00000000 W", "00003000 R"),
			traceOf("00000000 R", "00004000 R", "00005000 W"))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.UsedFrames).To(BeNumerically("<=", report.NumFrames))
		Expect(uint64(report.NumFrames)).To(BeNumerically("<=", report.Loads))
		Expect(report.Loads).To(Equal(report.TotalFaults()))
	})

	It("should fail when the working set cannot fit", func() {
		c := config(simulation.AlgorithmWS, 2, 3)
		c.WSSize = 3
		build(c,
			traceOf("00000000 R", "00001000 R", "00002000 R"),
			traceOf("00010000 R", "00011000 R", "00012000 R"))

		report, err := s.Run()

		var unsatisfiable *eviction.UnsatisfiableError
		Expect(errors.As(err, &unsatisfiable)).To(BeTrue())
		Expect(unsatisfiable.WSSize).To(Equal(3))
		Expect(unsatisfiable.NumFrames).To(Equal(2))
		Expect(report.Loads).To(Equal(uint64(2)))
	})

	It("should disturb another working set when memory is short", func() {
		c := config(simulation.AlgorithmWS, 2, 1)
		c.WSSize = 2
		build(c,
			traceOf("00000000 R", "00001000 R"),
			traceOf("00010000 R"))

		var logBuf bytes.Buffer
		s.AcceptHook(newLineHook(&logBuf))

		report, err := s.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Loads).To(Equal(uint64(3)))
		Expect(s.WorkingSets()[1].Contains(0x10)).To(BeFalse())
		Expect(logBuf.String()).To(ContainSubstring(mmu.HookPosDisturb.Name))
	})

	It("should stop on an invalid action", func() {
		build(config(simulation.AlgorithmLRU, 2, 1),
			traceOf("00000000 X"),
			traceOf())

		_, err := s.Run()

		var invalid *mmu.InvalidActionError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("bzip"))
	})

	Context("with trace files", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		writeTrace := func(name string, records ...string) string {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path,
				[]byte(strings.Join(records, "\n")+"\n"), 0o644)).To(Succeed())

			return path
		}

		It("should open the traces of the configuration", func() {
			c := config(simulation.AlgorithmLRU, 2, 1)
			c.Traces = []simulation.TraceSpec{
				{Name: "a", Path: writeTrace("a.trace", "00000000 W")},
				{Name: "b", Path: writeTrace("b.trace", "00001000 R")},
				{Name: "c", Path: writeTrace("c.trace", "00002000 R")},
			}

			var err error
			s, err = simulation.MakeBuilder().WithConfig(c).Build()
			Expect(err).ToNot(HaveOccurred())

			report, err := s.Run()

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Workloads).To(HaveLen(3))
			Expect(report.Loads).To(Equal(uint64(3)))
			Expect(report.Saves).To(Equal(uint64(1)))
		})

		It("should fail on a missing trace", func() {
			c := config(simulation.AlgorithmLRU, 2, 1)
			c.Traces = []simulation.TraceSpec{
				{Name: "a", Path: writeTrace("a.trace", "00000000 R")},
				{Name: "b", Path: filepath.Join(dir, "missing.trace")},
			}

			_, err := simulation.MakeBuilder().WithConfig(c).Build()

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("trace of b"))
		})
	})

	Context("with instruments", func() {
		It("should print the event log", func() {
			var out bytes.Buffer

			var err error
			s, err = simulation.MakeBuilder().
				WithConfig(config(simulation.AlgorithmLRU, 1, 1)).
				WithTraceReader("bzip", traceOf("00000010 W")).
				WithTraceReader("gcc", traceOf("00002000 R")).
				WithEventLogger(log.New(&out, "", 0)).
				Build()
			Expect(err).ToNot(HaveOccurred())

			_, err = s.Run()
			Expect(err).ToNot(HaveOccurred())

			Expect(out.String()).To(Equal(
				"Reference 1 of bzip (1 overall): 00000010 W\n" +
					"LOAD page 0 from hard disk to frame 0 of main memory\n" +
					"WRITE page 0 to frame 0 of main memory\n" +
					"Reference 1 of gcc (2 overall): 00002000 R\n" +
					"SAVE page 0 from frame 0 of main memory to hard disk\n" +
					"LOAD page 2 from hard disk to frame 0 of main memory\n" +
					"READ page 2 from frame 0 of main memory\n"))
		})

		It("should record events and the final report", func() {
			db, err := sql.Open("sqlite3",
				filepath.Join(GinkgoT().TempDir(), "rec.sqlite3"))
			Expect(err).ToNot(HaveOccurred())

			s, err = simulation.MakeBuilder().
				WithConfig(config(simulation.AlgorithmLRU, 2, 1)).
				WithTraceReader("bzip", traceOf("00000000 R")).
				WithTraceReader("gcc", traceOf("00001000 W")).
				WithDataRecorder(datarecording.NewWithDB(db)).
				Build()
			Expect(err).ToNot(HaveOccurred())

			_, err = s.Run()
			Expect(err).ToNot(HaveOccurred())

			var events, reports int
			Expect(db.QueryRow("SELECT COUNT(*) FROM page_events").
				Scan(&events)).To(Succeed())
			Expect(db.QueryRow("SELECT COUNT(*) FROM workload_reports").
				Scan(&reports)).To(Succeed())

			// reference, fault, load and access of each workload
			Expect(events).To(Equal(8))
			Expect(reports).To(Equal(2))
		})

		It("should record how the run was executed", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "rec.sqlite3")
			db, err := sql.Open("sqlite3", dbPath)
			Expect(err).ToNot(HaveOccurred())

			s, err = simulation.MakeBuilder().
				WithConfig(config(simulation.AlgorithmLRU, 2, 1)).
				WithTraceReader("bzip", traceOf("00000000 R")).
				WithTraceReader("gcc", traceOf()).
				WithDataRecorder(datarecording.NewWithDB(db)).
				Build()
			Expect(err).ToNot(HaveOccurred())

			_, err = s.Run()
			Expect(err).ToNot(HaveOccurred())

			id := s.ID()
			Expect(s.Terminate()).To(Succeed())
			s = nil

			db, err = sql.Open("sqlite3", dbPath)
			Expect(err).ToNot(HaveOccurred())
			defer db.Close()

			rows, err := db.Query(
				"SELECT Property FROM exec_info WHERE Run = ? ORDER BY rowid", id)
			Expect(err).ToNot(HaveOccurred())
			defer rows.Close()

			var properties []string
			for rows.Next() {
				var property string
				Expect(rows.Scan(&property)).To(Succeed())
				properties = append(properties, property)
			}

			Expect(properties).To(Equal([]string{
				"Start Time", "Command", "Working Directory", "End Time",
			}))
		})

		It("should feed the monitor", func() {
			m := monitoring.NewMonitor()

			var err error
			s, err = simulation.MakeBuilder().
				WithConfig(config(simulation.AlgorithmLRU, 2, 1)).
				WithTraceReader("bzip", traceOf("00000000 R")).
				WithTraceReader("gcc", traceOf("00001000 W", "00001000 R")).
				WithMonitor(m).
				Build()
			Expect(err).ToNot(HaveOccurred())

			_, err = s.Run()
			Expect(err).ToNot(HaveOccurred())

			rec := httptest.NewRecorder()
			m.Router().ServeHTTP(rec,
				httptest.NewRequest(http.MethodGet, "/api/progress", nil))
			Expect(rec.Body.String()).To(Equal("[]"))

			snapshot, ok := m.CounterSnapshot()
			Expect(ok).To(BeTrue())
			Expect(snapshot.References).To(Equal(uint64(3)))
			Expect(snapshot.Workloads[1].Writes).To(Equal(uint64(1)))
		})
	})
})
