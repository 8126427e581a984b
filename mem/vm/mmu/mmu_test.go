package mmu

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/eviction"
	"github.com/sarchlab/pagesim/mem/vm/workingset"
	"github.com/sarchlab/pagesim/sim"
)

type recordedEvent struct {
	pos    *sim.HookPos
	event  PageEvent
	detail any
}

var _ = Describe("MMU", func() {
	var (
		mockCtrl     *gomock.Controller
		victimFinder *MockVictimFinder
		table        vm.InvertedPageTable
		frames       *vm.FrameStore
		counters     *vm.Counters
		mmu          *Comp
		events       []recordedEvent
	)

	read := func(page uint64) vm.Reference {
		return vm.Reference{Page: page, Action: vm.ActionRead}
	}

	write := func(page uint64) vm.Reference {
		return vm.Reference{Page: page, Action: vm.ActionWrite}
	}

	resolve := func(pid vm.PID, ref vm.Reference) (Result, error) {
		counters.References++
		counters.Resolved[pid]++

		return mmu.Resolve(pid, ref)
	}

	positions := func() []*sim.HookPos {
		p := []*sim.HookPos{}
		for _, e := range events {
			p = append(p, e.pos)
		}

		return p
	}

	build := func(numFrames int, sets []workingset.Set) {
		var err error

		table = vm.NewInvertedPageTable(numFrames)
		frames, err = vm.NewFrameStore(numFrames, 4096)
		Expect(err).NotTo(HaveOccurred())

		mmu = MakeBuilder().
			WithPageTable(table).
			WithFrameStore(frames).
			WithVictimFinder(victimFinder).
			WithWorkingSets(sets).
			WithCounters(counters).
			Build("MMU")

		mmu.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			events = append(events, recordedEvent{
				pos:    ctx.Pos,
				event:  ctx.Item.(PageEvent),
				detail: ctx.Detail,
			})
		}))
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		victimFinder = NewMockVictimFinder(mockCtrl)
		counters = vm.NewCounters(2)
		events = nil

		build(2, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("builder", func() {
		It("should panic without a victim finder", func() {
			Expect(func() {
				MakeBuilder().
					WithPageTable(table).
					WithFrameStore(frames).
					WithCounters(counters).
					Build("MMU")
			}).To(Panic())
		})

		It("should panic when the table and the frames disagree", func() {
			Expect(func() {
				MakeBuilder().
					WithPageTable(vm.NewInvertedPageTable(3)).
					WithFrameStore(frames).
					WithVictimFinder(victimFinder).
					WithCounters(counters).
					Build("MMU")
			}).To(Panic())
		})

		It("should panic without one working set per workload", func() {
			Expect(func() {
				MakeBuilder().
					WithPageTable(table).
					WithFrameStore(frames).
					WithVictimFinder(victimFinder).
					WithWorkingSets([]workingset.Set{workingset.New(1)}).
					WithCounters(counters).
					Build("MMU")
			}).To(Panic())
		})
	})

	It("should load a missing page into a free frame", func() {
		res, err := resolve(0, read(5))

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(Result{Frame: 0, Fault: true}))
		Expect(counters.Faults).To(Equal([]uint64{1, 0}))
		Expect(counters.Loads).To(Equal(uint64(1)))
		Expect(table.Entry(0)).To(Equal(vm.Entry{
			PID: 0, Page: 5, Timestamp: 1, Valid: true,
		}))
		Expect(positions()).To(Equal([]*sim.HookPos{
			HookPosFault, HookPosLoad, HookPosRead,
		}))
	})

	It("should hit on a second read of the same page", func() {
		_, _ = resolve(1, read(5))
		events = nil

		res, err := resolve(1, read(5))

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(Result{Frame: 0}))
		Expect(counters.Faults).To(Equal([]uint64{0, 1}))
		Expect(counters.Loads).To(Equal(uint64(1)))
		Expect(table.Entry(0).Timestamp).To(Equal(uint64(2)))
		Expect(positions()).To(Equal([]*sim.HookPos{HookPosRead}))
	})

	It("should keep pages of different workloads apart", func() {
		_, _ = resolve(0, read(5))
		res, _ := resolve(1, read(5))

		Expect(res.Fault).To(BeTrue())
		Expect(res.Frame).To(Equal(1))
		Expect(table.Entry(1).PID).To(Equal(vm.PID(1)))
	})

	It("should mark written pages as modified", func() {
		_, err := resolve(0, write(5))

		Expect(err).NotTo(HaveOccurred())
		Expect(table.Entry(0).Modified).To(BeTrue())
		Expect(positions()).To(ContainElement(HookPosWrite))
	})

	It("should evict through the victim finder when memory is full", func() {
		_, _ = resolve(0, read(1))
		_, _ = resolve(1, read(2))
		events = nil

		victimFinder.EXPECT().
			FindVictim(vm.PID(0)).
			Return(eviction.Victim{Frame: 1}, nil)

		res, err := resolve(0, read(3))

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(Result{Frame: 1, Fault: true, Evicted: true}))
		Expect(counters.Saves).To(Equal(uint64(0)))
		Expect(counters.Loads).To(Equal(uint64(3)))
		Expect(table.Entry(1)).To(Equal(vm.Entry{
			PID: 0, Page: 3, Timestamp: 3, Valid: true,
		}))
		Expect(positions()).To(Equal([]*sim.HookPos{
			HookPosFault, HookPosLoad, HookPosRead,
		}))
	})

	It("should save a modified victim before reusing its frame", func() {
		_, _ = resolve(0, read(1))
		_, _ = resolve(1, write(2))
		events = nil

		victimFinder.EXPECT().
			FindVictim(vm.PID(0)).
			Return(eviction.Victim{Frame: 1}, nil)

		res, err := resolve(0, read(3))

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Saved).To(BeTrue())
		Expect(counters.Saves).To(Equal(uint64(1)))
		Expect(table.Entry(1).Modified).To(BeFalse())
		Expect(positions()).To(Equal([]*sim.HookPos{
			HookPosFault, HookPosSave, HookPosLoad, HookPosRead,
		}))
		Expect(events[1].event).To(Equal(PageEvent{
			PID: 1, Page: 2, Frame: 1, Time: 3,
		}))
	})

	It("should report a disturbed working set", func() {
		_, _ = resolve(0, read(1))
		_, _ = resolve(1, read(2))
		events = nil

		victimFinder.EXPECT().
			FindVictim(vm.PID(0)).
			Return(eviction.Victim{
				Frame:        1,
				Disturbed:    true,
				DisturbedPID: 1,
			}, nil)

		_, err := resolve(0, read(3))

		Expect(err).NotTo(HaveOccurred())
		Expect(events[1].pos).To(Equal(HookPosDisturb))
		Expect(events[1].event.PID).To(Equal(vm.PID(0)))
		Expect(events[1].event.Page).To(Equal(uint64(2)))
		Expect(events[1].detail).To(Equal(vm.PID(1)))
	})

	It("should pass victim finder errors through", func() {
		_, _ = resolve(0, read(1))
		_, _ = resolve(0, read(2))

		victimFinder.EXPECT().
			FindVictim(vm.PID(0)).
			Return(eviction.Victim{}, &eviction.UnsatisfiableError{
				WSSize: 2, NumFrames: 2,
			})

		_, err := resolve(0, read(3))

		var unsatisfiable *eviction.UnsatisfiableError
		Expect(errors.As(err, &unsatisfiable)).To(BeTrue())
	})

	It("should reject an unknown action", func() {
		_, err := resolve(1, vm.Reference{Page: 1, Action: 'X'})

		var invalid *InvalidActionError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(invalid.PID).To(Equal(vm.PID(1)))
		Expect(invalid.Action).To(Equal(vm.Action('X')))
	})

	It("should reject an offset outside the frame", func() {
		_, err := resolve(0, vm.Reference{
			Page:   1,
			Offset: 4096,
			Action: vm.ActionRead,
		})

		Expect(err).To(HaveOccurred())
	})

	It("should panic on an unknown pid", func() {
		Expect(func() { _, _ = mmu.Resolve(2, read(1)) }).To(Panic())
	})

	Context("with working sets", func() {
		var sets []workingset.Set

		BeforeEach(func() {
			sets = []workingset.Set{workingset.New(2), workingset.New(2)}
			build(2, sets)
		})

		It("should insert every resolved page, hits included", func() {
			_, _ = resolve(0, read(1))
			_, _ = resolve(0, read(1))

			Expect(sets[0].Pages()).To(Equal([]uint64{1, 1}))
			Expect(sets[1].Pages()).To(BeEmpty())
		})

		It("should not insert a page whose action is invalid", func() {
			_, err := resolve(0, vm.Reference{Page: 4, Action: '?'})

			Expect(err).To(HaveOccurred())
			Expect(sets[0].Contains(4)).To(BeFalse())
		})
	})
})
