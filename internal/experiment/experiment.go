// Package experiment assembles a run from configuration: capability
// detection, integrator routing, the step clock and its hooks, the selected
// program, checkpointing and run storage.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/magsim/internal/checkpoint"
	"github.com/san-kum/magsim/internal/config"
	"github.com/san-kum/magsim/internal/integrators"
	"github.com/san-kum/magsim/internal/logx"
	"github.com/san-kum/magsim/internal/metrics"
	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
	"github.com/san-kum/magsim/internal/storage"
	"github.com/san-kum/magsim/internal/sweep"
)

// Options carries collaborators that are normally derived from the config.
type Options struct {
	Log logrus.FieldLogger
	// Backends overrides capability detection.
	Backends *Backends
	// Checkpoint overrides the store named in the config.
	Checkpoint checkpoint.Bridge
	// Observers receive every row after it is stored.
	Observers []Observer
	Registry  *Registry
}

// Observer watches the stored rows of a run, e.g. a live view.
type Observer interface {
	Observe(row storage.Row) error
}

type ObserverFunc func(storage.Row) error

func (f ObserverFunc) Observe(row storage.Row) error { return f(row) }

// Env is everything a program needs to run.
type Env struct {
	Config     *config.Config
	Log        logrus.FieldLogger
	State      *sim.RunState
	System     *spins.System
	Driver     *sim.Driver
	Stats      metrics.Set
	Checkpoint checkpoint.Bridge
	Out        sweep.Emitter
	Mode       sweep.StartMode
	Metrics    map[string]float64
}

func (env *Env) restoreSpins(rec checkpoint.Record) error {
	if len(rec.Spins) == 0 {
		return nil
	}
	if err := env.System.Restore(rec.Spins); err != nil {
		return checkpoint.Inconsistent(err.Error(), &rec)
	}
	return nil
}

type Result struct {
	RunID        string
	RunDir       string
	Program      string
	Route        sim.Route
	Caps         sim.Capabilities
	Steps        uint64
	Time         uint64
	Points       int
	Mode         sweep.StartMode
	MC           *integrators.Stats
	HeadPosition float64
	Elapsed      time.Duration
	Metrics      map[string]float64
}

type Experiment struct {
	cfg  *config.Config
	opts Options
	log  logrus.FieldLogger
}

func New(cfg *config.Config, opts Options) *Experiment {
	log := opts.Log
	if log == nil {
		log = logx.Discard()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, opts: opts, log: log}
}

// Plan resolves the program and route without building the system.
func (e *Experiment) Plan() (Program, sim.Route, sim.Capabilities, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, sim.Route{}, sim.Capabilities{}, err
	}
	prog, err := e.opts.Registry.GetProgram(e.cfg.Program)
	if err != nil {
		return nil, sim.Route{}, sim.Capabilities{}, err
	}
	kind, err := sim.ParseIntegrator(e.cfg.Integrator)
	if err != nil {
		return nil, sim.Route{}, sim.Capabilities{}, err
	}

	caps := e.backends().Capabilities()
	backend, err := sim.Select(kind, caps)
	if err != nil {
		return nil, sim.Route{Kind: kind}, caps, err
	}
	return prog, sim.Route{Kind: kind, Backend: backend}, caps, nil
}

func (e *Experiment) backends() Backends {
	if e.opts.Backends != nil {
		return *e.opts.Backends
	}
	return DetectCapabilities(e.cfg.Backend)
}

// Run builds and executes the configured program. Dispatch and
// configuration errors are returned before any step runs.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prog, err := e.opts.Registry.GetProgram(cfg.Program)
	if err != nil {
		return nil, err
	}
	kind, err := sim.ParseIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	backends := e.backends()
	defer backends.Cleanup()
	caps := backends.Capabilities()

	state := sim.NewRunState()
	sys, err := newSystem(cfg.System)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.System.Randomize {
		sys.Randomize(rng)
	}

	k := newKernels(sys, state, rng)
	router := sim.NewRouter()
	k.register(router, backends)

	res, err := router.Resolve(kind, caps)
	if err != nil {
		return nil, err
	}

	log := e.log.WithFields(logrus.Fields{
		"program":    prog.Name(),
		"integrator": kind.String(),
		"backend":    string(res.Backend),
	})
	log.WithField("caps", caps.String()).Info("dispatch resolved")

	head := &spins.Head{Speed: cfg.Hooks.HeadSpeed, Dt: cfg.System.Dt}
	clock := sim.NewClock(state, hooks(cfg.Hooks, sys, state, head))
	driver := sim.NewDriver(res, clock)

	ckpt, closeCkpt, err := e.checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	defer closeCkpt()

	// A checkpoint without continue seeds the spins only.
	if cfg.Checkpoint.Load && !cfg.Checkpoint.Continue {
		rec, ok, err := ckpt.LoadResumeState(ctx)
		if err != nil {
			return nil, err
		}
		if ok && len(rec.Spins) > 0 {
			if err := sys.Restore(rec.Spins); err != nil {
				return nil, checkpoint.Inconsistent(err.Error(), &rec)
			}
			log.Info("spins loaded from checkpoint")
		}
	}

	store := storage.New(cfg.Output.Dir)
	if err := store.Init(); err != nil {
		return nil, err
	}
	writer, err := store.Create(storage.RunMetadata{
		Program:     prog.Name(),
		Integrator:  kind.String(),
		Backend:     string(res.Backend),
		Seed:        cfg.Seed,
		Spins:       cfg.System.Spins,
		Temperature: cfg.System.Temperature,
		Dt:          cfg.System.Dt,
	})
	if err != nil {
		return nil, err
	}

	mag := metrics.NewMagnetisation(sys)
	energy := metrics.NewEnergy(sys, state)
	writer.Observe(mag, energy)

	env := &Env{
		Config:     cfg,
		Log:        log.WithField("run", writer.ID()),
		State:      state,
		System:     sys,
		Driver:     driver,
		Stats:      metrics.Set{mag, energy},
		Checkpoint: ckpt,
		Mode:       sweep.StartCold,
		Metrics:    make(map[string]float64),
	}
	env.Out = e.emitter(ctx, env, writer)

	start := time.Now()
	runErr := prog.Run(ctx, env)
	elapsed := time.Since(start)

	result := &Result{
		RunID:        writer.ID(),
		RunDir:       writer.Dir(),
		Program:      prog.Name(),
		Route:        res.Route,
		Caps:         caps,
		Steps:        driver.Steps(),
		Time:         state.Time,
		Points:       writer.Points(),
		Mode:         env.Mode,
		HeadPosition: head.Position,
		Elapsed:      elapsed,
		Metrics:      env.Metrics,
	}
	if st, ok := k.stats(kind); ok {
		result.MC = &st
		logMCStats(env.Log, st)
		env.Metrics["mc_acceptance"] = st.AcceptanceRate()
	}

	if runErr == nil && cfg.Checkpoint.Save {
		if err := ckpt.SaveState(ctx, checkpoint.Snapshot(state, sys.Snapshot())); err != nil {
			runErr = fmt.Errorf("save checkpoint: %w", err)
		}
	}

	if err := writer.Close(driver.Steps(), env.Mode.String(), env.Metrics); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if runErr != nil {
		return result, runErr
	}

	env.Log.WithFields(logrus.Fields{
		"steps":  result.Steps,
		"points": result.Points,
		"mode":   result.Mode.String(),
	}).Info("run complete")
	return result, nil
}

func newSystem(cfg config.SystemConfig) (*spins.System, error) {
	var mask []bool
	if cfg.ConstrainedFraction < 1 {
		mask = make([]bool, cfg.Spins)
		n := int(cfg.ConstrainedFraction * float64(cfg.Spins))
		for i := 0; i < n; i++ {
			mask[i] = true
		}
	}
	return spins.New(spins.Params{
		N:             cfg.Spins,
		Moment:        cfg.Moment * spins.MuB,
		Anisotropy:    cfg.Anisotropy,
		Exchange:      cfg.Exchange,
		Damping:       cfg.Damping,
		Temperature:   cfg.Temperature,
		Dt:            cfg.Dt,
		FieldDir:      spins.Direction(cfg.FieldTheta, cfg.FieldPhi),
		Constrained:   mask,
		ConstraintDir: spins.Direction(cfg.ConstraintTheta, cfg.ConstraintPhi),
	})
}

// hooks builds the clock hooks enabled in cfg. Disabled hooks stay nil.
func hooks(cfg config.HooksConfig, sys *spins.System, state *sim.RunState, head *spins.Head) sim.Hooks {
	var h sim.Hooks
	if cfg.HeadSpeed != 0 {
		h.MoveSource = head.Move
	}
	if cfg.Demag.Enabled {
		d := spins.NewDemag(sys, func() uint64 { return state.Time }, cfg.Demag.Factors, cfg.Demag.Saturation, cfg.Demag.Rate)
		h.RecomputeField = d.Update
	}
	if cfg.Lagrange.Enabled {
		l := spins.NewLagrange(sys, cfg.Lagrange.M, cfg.Lagrange.N, spins.Direction(cfg.Lagrange.Theta, cfg.Lagrange.Phi))
		h.UpdateConstraint = l.Update
	}
	return h
}

func (e *Experiment) checkpoint(ctx context.Context) (checkpoint.Bridge, func() error, error) {
	if e.opts.Checkpoint != nil {
		return e.opts.Checkpoint, func() error { return nil }, nil
	}
	c := e.cfg.Checkpoint
	if !c.Load && !c.Save {
		return checkpoint.NewMemoryStore(), func() error { return nil }, nil
	}
	return checkpoint.Open(ctx, c.Store, c.Path, c.Key)
}

// emitter chains storage, continuous checkpointing and observers.
func (e *Experiment) emitter(ctx context.Context, env *Env, writer *storage.Writer) sweep.Emitter {
	c := env.Config.Checkpoint
	points := 0
	return sweep.EmitterFunc(func(p sweep.Point) error {
		row, err := writer.Record(p)
		if err != nil {
			return err
		}
		points++
		if c.Save && c.Continuous && points%c.SaveRate == 0 {
			rec := checkpoint.Snapshot(env.State, env.System.Snapshot())
			if err := env.Checkpoint.SaveState(ctx, rec); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		env.Log.WithFields(logrus.Fields{
			"branch":   p.Polarity,
			"field_ut": p.Field,
			"time":     p.EndTime,
		}).Debug("point")
		for _, o := range e.opts.Observers {
			if err := o.Observe(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func logMCStats(log logrus.FieldLogger, st integrators.Stats) {
	log.WithFields(logrus.Fields{
		"attempts":       st.Attempts,
		"acceptance":     fmt.Sprintf("%.4f", st.AcceptanceRate()),
		"sphere_rejects": st.SphereRejects,
		"energy_rejects": st.EnergyRejects,
	}).Info("monte carlo statistics")
}
