package sweep_test

import (
	"context"
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/magsim/internal/checkpoint"
	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/sweep"
)

type countingStats struct {
	resets  int
	samples int
}

func (s *countingStats) Reset()  { s.resets++ }
func (s *countingStats) Sample() { s.samples++ }

// rig wires a controller to a counting step function through the real
// clock and driver.
type rig struct {
	state  *sim.RunState
	driver *sim.Driver
	stats  *countingStats
	points []sweep.Point
	steps  int
	// emit, when set, runs after the point is recorded.
	emit func(sweep.Point) error
}

func newRig() *rig {
	r := &rig{state: sim.NewRunState(), stats: &countingStats{}}
	clock := sim.NewClock(r.state, sim.Hooks{})
	r.driver = sim.NewDriver(sim.Resolution{Step: func() error {
		r.steps++
		return nil
	}}, clock)
	return r
}

func (r *rig) Emit(p sweep.Point) error {
	r.points = append(r.points, p)
	if r.emit != nil {
		return r.emit(p)
	}
	return nil
}

func (r *rig) controller(cfg sweep.Config, ckpt checkpoint.Bridge) *sweep.Controller {
	c, err := sweep.New(cfg, r.state, r.driver, r.stats, r, ckpt, nil)
	Expect(err).NotTo(HaveOccurred())
	return c
}

func loopConfig() sweep.Config {
	b, err := sweep.NewBounds(-1, 1, 0.1)
	Expect(err).NotTo(HaveOccurred())
	return sweep.Config{
		Bounds:            b,
		HEq:               1.5,
		EquilibrationTime: 50,
		LoopTime:          20,
		PartialTime:       5,
	}
}

type fieldPoint struct {
	Polarity int64
	Field    int64
	EndTime  uint64
}

func trace(points []sweep.Point) []fieldPoint {
	out := make([]fieldPoint, len(points))
	for i, p := range points {
		out[i] = fieldPoint{Polarity: p.Polarity, Field: p.Field, EndTime: p.EndTime}
	}
	return out
}

var _ = Describe("Controller", func() {
	var (
		r   *rig
		cfg sweep.Config
		ctx context.Context
	)

	BeforeEach(func() {
		r = newRig()
		cfg = loopConfig()
		ctx = context.Background()
	})

	Describe("cold start over -1..+1 T in 0.1 T steps", func() {
		var c *sweep.Controller

		BeforeEach(func() {
			c = r.controller(cfg, nil)
			Expect(c.Phase()).To(Equal(sweep.PhaseInit))
			Expect(c.Run(ctx)).To(Succeed())
		})

		It("emits 21 points per branch and ends in Done", func() {
			Expect(r.points).To(HaveLen(42))
			Expect(c.Phase()).To(Equal(sweep.PhaseDone))
			Expect(c.Mode()).To(Equal(sweep.StartCold))
			Expect(c.Emitted()).To(Equal(42))
		})

		It("flips polarity exactly once", func() {
			flips := 0
			for i := 1; i < len(r.points); i++ {
				prev, cur := r.points[i-1].Polarity, r.points[i].Polarity
				Expect(cur).To(BeNumerically(">=", prev))
				if cur != prev {
					Expect(cur - prev).To(Equal(int64(2)))
					flips++
				}
			}
			Expect(flips).To(Equal(1))
			Expect(r.points[0].Polarity).To(Equal(int64(-1)))
			Expect(r.points[41].Polarity).To(Equal(int64(1)))
		})

		It("walks each branch by exactly the increment", func() {
			for _, branch := range [][]sweep.Point{r.points[:21], r.points[21:]} {
				Expect(branch[0].Field).To(Equal(int64(-1000000)))
				Expect(branch[20].Field).To(Equal(int64(1000000)))
				for i := 1; i < len(branch); i++ {
					Expect(branch[i].Field - branch[i-1].Field).To(Equal(int64(100000)))
				}
			}
		})

		It("applies field x polarity in Tesla", func() {
			Expect(r.points[0].HApplied).To(BeNumerically("~", 1.0, 1e-12))
			Expect(r.points[20].HApplied).To(BeNumerically("~", -1.0, 1e-12))
			Expect(r.points[21].HApplied).To(BeNumerically("~", -1.0, 1e-12))
			Expect(r.points[41].HApplied).To(BeNumerically("~", 1.0, 1e-12))
			for _, p := range r.points {
				Expect(p.Field).To(BeNumerically(">=", -cfg.Bounds.Max))
				Expect(p.Field).To(BeNumerically("<=", cfg.Bounds.Max))
			}
		})

		It("equilibrates and then integrates loop_time per point", func() {
			Expect(r.steps).To(Equal(50 + 42*20))
			Expect(r.state.Time).To(Equal(uint64(50 + 42*20)))
			Expect(r.points[0].StartTime).To(Equal(uint64(50)))
			for _, p := range r.points {
				Expect(p.EndTime - p.StartTime).To(Equal(uint64(20)))
				Expect(p.Samples).To(Equal(4))
			}
		})

		It("resets statistics once per point and samples after every block", func() {
			Expect(r.stats.resets).To(Equal(42))
			Expect(r.stats.samples).To(Equal(42 * 4))
		})

		It("leaves the run state marked done", func() {
			Expect(r.state.Polarity).To(Equal(checkpoint.PolarityDone))
			Expect(r.state.Field).To(Equal(cfg.Bounds.Min))
		})

		It("refuses to run twice", func() {
			Expect(c.Run(ctx)).NotTo(Succeed())
		})
	})

	It("overshoots loop_time to whole partial blocks", func() {
		cfg.LoopTime = 12
		cfg.PartialTime = 5
		cfg.EquilibrationTime = 0
		Expect(r.controller(cfg, nil).Run(ctx)).To(Succeed())
		Expect(r.points[0].EndTime).To(Equal(uint64(15)))
		Expect(r.points[0].Samples).To(Equal(3))
	})

	It("emits without integrating when loop_time is zero", func() {
		cfg.LoopTime = 0
		cfg.PartialTime = 0
		cfg.EquilibrationTime = 0
		Expect(r.controller(cfg, nil).Run(ctx)).To(Succeed())
		Expect(r.points).To(HaveLen(42))
		Expect(r.steps).To(BeZero())
	})

	Describe("precondition checks", func() {
		It("rejects a zero increment before any integration", func() {
			cfg.Bounds.Inc = 0
			c, err := sweep.New(cfg, r.state, r.driver, r.stats, r, nil, nil)
			Expect(c).To(BeNil())
			Expect(err).To(MatchError(sim.ErrMalformedSweep))
			Expect(r.steps).To(BeZero())
			Expect(r.points).To(BeEmpty())
		})

		It("rejects loop_time without partial_time", func() {
			cfg.PartialTime = 0
			_, err := sweep.New(cfg, r.state, r.driver, r.stats, r, nil, nil)
			Expect(err).To(MatchError(sim.ErrMalformedSweep))
		})

		It("rejects resume without a store", func() {
			cfg.Resume = true
			_, err := sweep.New(cfg, r.state, r.driver, r.stats, r, nil, nil)
			Expect(err).To(MatchError(sim.ErrCheckpointInconsistent))
		})
	})

	Describe("resume", func() {
		BeforeEach(func() {
			cfg.Resume = true
		})

		It("continues mid negative branch from the saved field", func() {
			store := checkpoint.NewMemoryStoreWith(checkpoint.Record{Polarity: -1, Field: -300000, StepCounter: 1000, Resume: true})
			c := r.controller(cfg, store)
			Expect(c.Run(ctx)).To(Succeed())

			Expect(store.Loads).To(Equal(1))
			Expect(c.Mode()).To(Equal(sweep.StartResumed))
			// -0.3..1.0 is 14 points, then a full positive branch.
			Expect(r.points).To(HaveLen(14 + 21))
			Expect(r.points[0].Field).To(Equal(int64(-300000)))
			Expect(r.points[0].Polarity).To(Equal(int64(-1)))
			Expect(r.points[0].StartTime).To(Equal(uint64(1000)))
			Expect(r.points[14].Field).To(Equal(int64(-1000000)))
			Expect(r.points[14].Polarity).To(Equal(int64(1)))
			Expect(r.steps).To(Equal(35 * 20), "no equilibration on resume")
		})

		It("continues mid positive branch and skips the negative one", func() {
			store := checkpoint.NewMemoryStoreWith(checkpoint.Record{Polarity: 1, Field: 400000, StepCounter: 9000, Resume: true})
			c := r.controller(cfg, store)
			Expect(c.Run(ctx)).To(Succeed())

			Expect(r.points).To(HaveLen(7))
			for _, p := range r.points {
				Expect(p.Polarity).To(Equal(int64(1)))
			}
			Expect(r.points[0].Field).To(Equal(int64(400000)))
			Expect(r.points[6].Field).To(Equal(int64(1000000)))
			Expect(c.Phase()).To(Equal(sweep.PhaseDone))
		})

		It("runs only the positive branch when the negative one had just finished", func() {
			store := checkpoint.NewMemoryStoreWith(checkpoint.Record{Polarity: -1, Field: 1100000, Resume: true})
			Expect(r.controller(cfg, store).Run(ctx)).To(Succeed())
			Expect(r.points).To(HaveLen(21))
			Expect(r.points[0].Polarity).To(Equal(int64(1)))
			Expect(r.points[0].Field).To(Equal(int64(-1000000)))
		})

		It("does nothing for a finished sweep", func() {
			store := checkpoint.NewMemoryStoreWith(checkpoint.Record{Polarity: 3, Field: -1000000, StepCounter: 500, Resume: true})
			c := r.controller(cfg, store)
			Expect(c.Run(ctx)).To(Succeed())
			Expect(r.points).To(BeEmpty())
			Expect(r.steps).To(BeZero())
			Expect(c.Phase()).To(Equal(sweep.PhaseDone))
			Expect(r.state.Time).To(Equal(uint64(500)))
		})

		It("hands the record to OnResume before stepping", func() {
			rec := checkpoint.Record{Polarity: 1, Field: 900000, Spins: [][3]float64{{0, 0, 1}}, Resume: true}
			c := r.controller(cfg, checkpoint.NewMemoryStoreWith(rec))
			var got *checkpoint.Record
			c.OnResume = func(rec checkpoint.Record) error {
				Expect(r.steps).To(BeZero())
				got = &rec
				return nil
			}
			Expect(c.Run(ctx)).To(Succeed())
			Expect(got).NotTo(BeNil())
			Expect(got.Spins).To(HaveLen(1))
		})

		DescribeTable("rejects inconsistent records before stepping",
			func(rec checkpoint.Record) {
				c := r.controller(cfg, checkpoint.NewMemoryStoreWith(rec))
				Expect(c.Run(ctx)).To(MatchError(sim.ErrCheckpointInconsistent))
				Expect(r.steps).To(BeZero())
				Expect(r.points).To(BeEmpty())
			},
			Entry("not marked resumable", checkpoint.Record{Polarity: -1, Field: 0}),
			Entry("polarity out of range", checkpoint.Record{Polarity: 0, Field: 0, Resume: true}),
			Entry("field outside bounds", checkpoint.Record{Polarity: -1, Field: 5000000, Resume: true}),
			Entry("field off grid", checkpoint.Record{Polarity: 1, Field: 123, Resume: true}),
		)

		It("surfaces a missing record distinctly by default", func() {
			c := r.controller(cfg, checkpoint.NewMemoryStore())
			err := c.Run(ctx)
			Expect(err).To(MatchError(sim.ErrCheckpointInconsistent))
			Expect(err.Error()).To(ContainSubstring("no checkpoint record"))
			Expect(r.steps).To(BeZero())
		})

		It("surfaces store failures as inconsistent", func() {
			c := r.controller(cfg, failingStore{})
			Expect(c.Run(ctx)).To(MatchError(sim.ErrCheckpointInconsistent))
		})

		It("starts cold on a missing record when allowed, identically to resume disabled", func() {
			cfg.AllowMissingCheckpoint = true
			c := r.controller(cfg, checkpoint.NewMemoryStore())
			Expect(c.Run(ctx)).To(Succeed())
			Expect(c.Mode()).To(Equal(sweep.StartColdMissingCheckpoint))

			cold := newRig()
			coldCfg := loopConfig()
			Expect(cold.controller(coldCfg, nil).Run(ctx)).To(Succeed())

			Expect(cmp.Diff(trace(cold.points), trace(r.points))).To(BeEmpty())
		})
	})

	Describe("interrupt and resume", func() {
		full := func() []fieldPoint {
			ref := newRig()
			Expect(ref.controller(loopConfig(), nil).Run(context.Background())).To(Succeed())
			return trace(ref.points)
		}

		DescribeTable("reproduces the uninterrupted trace",
			func(stopAfter int) {
				errInterrupted := errors.New("interrupted")
				store := checkpoint.NewMemoryStore()

				r.emit = func(p sweep.Point) error {
					Expect(store.SaveState(ctx, checkpoint.Snapshot(r.state, nil))).To(Succeed())
					if p.Index == stopAfter {
						return errInterrupted
					}
					return nil
				}
				err := r.controller(cfg, nil).Run(ctx)
				Expect(err).To(MatchError(errInterrupted))
				first := trace(r.points)

				resumed := newRig()
				resumeCfg := loopConfig()
				resumeCfg.Resume = true
				Expect(resumed.controller(resumeCfg, store).Run(ctx)).To(Succeed())

				got := append(first, trace(resumed.points)...)
				Expect(cmp.Diff(full(), got)).To(BeEmpty())
			},
			Entry("first point", 0),
			Entry("mid negative branch", 7),
			Entry("negative branch boundary", 20),
			Entry("first positive point", 21),
			Entry("mid positive branch", 33),
			Entry("last point", 41),
		)
	})

	It("stops between points when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		r.emit = func(p sweep.Point) error {
			if p.Index == 4 {
				cancel()
			}
			return nil
		}
		c := r.controller(cfg, nil)
		Expect(c.Run(cctx)).To(MatchError(context.Canceled))
		Expect(r.points).To(HaveLen(5))
		Expect(r.state.Field).To(Equal(int64(-500000)), "next uncompleted point")
	})

	It("propagates step failures", func() {
		boom := errors.New("diverged")
		state := sim.NewRunState()
		calls := 0
		driver := sim.NewDriver(sim.Resolution{Step: func() error {
			calls++
			if calls > 60 {
				return boom
			}
			return nil
		}}, sim.NewClock(state, sim.Hooks{}))

		c, err := sweep.New(cfg, state, driver, r.stats, r, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Run(ctx)).To(MatchError(boom))
		Expect(r.points).To(BeEmpty())
	})
})

type failingStore struct{}

func (failingStore) LoadResumeState(context.Context) (checkpoint.Record, bool, error) {
	return checkpoint.Record{}, false, errors.New("disk on fire")
}

func (failingStore) SaveState(context.Context, checkpoint.Record) error { return nil }
