// Package sweep drives the two-branch hysteresis field loop.
//
// The controller walks the quantized field from the lower bound to the
// upper bound on the negative branch (polarity -1) and again on the
// positive branch (polarity +1). Each field point is integrated for a fixed
// number of steps in partial blocks, sampling statistics after every
// block, and emits one record.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/magsim/internal/checkpoint"
	"github.com/san-kum/magsim/internal/sim"
)

// Phase is the state of the sweep machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseBranchNegative
	PhaseBranchPositive
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseBranchNegative:
		return "branch-negative"
	case PhaseBranchPositive:
		return "branch-positive"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Integrator runs n integration steps.
type Integrator interface {
	Integrate(n uint64) error
}

// Statistics is the magnetisation statistics collaborator.
type Statistics interface {
	Reset()
	Sample()
}

// Emitter receives one record per completed field point.
type Emitter interface {
	Emit(p Point) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Point) error

func (f EmitterFunc) Emit(p Point) error { return f(p) }

// Point summarises a completed field point.
type Point struct {
	Index     int
	Polarity  int64
	Field     int64
	HApplied  float64
	StartTime uint64
	EndTime   uint64
	Samples   int
}

// Config holds the sweep parameters. Times are in steps.
type Config struct {
	Bounds            Bounds
	HEq               float64
	EquilibrationTime uint64
	LoopTime          uint64
	PartialTime       uint64

	Resume                 bool
	AllowMissingCheckpoint bool
}

// Validate checks every precondition before the machine is entered.
func (c Config) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if c.LoopTime > 0 && c.PartialTime == 0 {
		return &ConfigError{Field: "partial_time", Value: c.PartialTime, Reason: "must be positive when loop_time is set"}
	}
	return nil
}

// Controller is the hysteresis state machine. It is the single writer of
// RunState.Polarity, RunState.Field and RunState.HApplied.
type Controller struct {
	cfg    Config
	state  *sim.RunState
	driver Integrator
	stats  Statistics
	out    Emitter
	ckpt   checkpoint.Bridge
	log    logrus.FieldLogger

	// OnResume is called with a validated record before the first resumed
	// branch, e.g. to restore the spin configuration.
	OnResume func(checkpoint.Record) error

	phase   Phase
	mode    StartMode
	emitted int
}

// New validates cfg and returns a controller. ckpt may be nil when cfg.Resume is false.
func New(cfg Config, state *sim.RunState, driver Integrator, stats Statistics, out Emitter, ckpt checkpoint.Bridge, log logrus.FieldLogger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Resume && ckpt == nil {
		return nil, checkpoint.Inconsistent("resume requested without a checkpoint store", nil)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Controller{
		cfg:    cfg,
		state:  state,
		driver: driver,
		stats:  stats,
		out:    out,
		ckpt:   ckpt,
		log:    log,
		phase:  PhaseInit,
	}, nil
}

func (c *Controller) Phase() Phase        { return c.phase }
func (c *Controller) Mode() StartMode     { return c.mode }
func (c *Controller) Emitted() int        { return c.emitted }
func (c *Controller) Bounds() Bounds      { return c.cfg.Bounds }
func (c *Controller) State() sim.RunState { return *c.state }

// resumeRecord loads the checkpoint exactly once when resume is requested.
func (c *Controller) resumeRecord(ctx context.Context) (*checkpoint.Record, error) {
	if !c.cfg.Resume {
		c.mode = StartCold
		return nil, nil
	}

	rec, ok, err := c.ckpt.LoadResumeState(ctx)
	if err != nil {
		var ie *checkpoint.InconsistentError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, checkpoint.Inconsistent(fmt.Sprintf("load: %v", err), nil)
	}
	if !ok {
		if !c.cfg.AllowMissingCheckpoint {
			return nil, checkpoint.Inconsistent("resume requested but no checkpoint record exists", nil)
		}
		c.mode = StartColdMissingCheckpoint
		c.log.Warn("resume requested but no checkpoint found; starting cold")
		return nil, nil
	}

	if err := rec.Resumable(); err != nil {
		return nil, err
	}
	if err := checkRecord(rec, c.cfg.Bounds, c.state.Time); err != nil {
		return nil, err
	}
	c.mode = StartResumed
	return &rec, nil
}

// Run executes the sweep to completion. Cancelling ctx stops it between
// field points. Every returned error is terminal.
func (c *Controller) Run(ctx context.Context) error {
	if c.phase != PhaseInit {
		return fmt.Errorf("sweep: controller already run (phase %s)", c.phase)
	}

	rec, err := c.resumeRecord(ctx)
	if err != nil {
		return err
	}

	startPolarity := int64(-1)
	if rec != nil {
		if c.OnResume != nil {
			if err := c.OnResume(*rec); err != nil {
				return err
			}
		}
		c.state.Time = rec.StepCounter
		startPolarity = rec.Polarity
		c.log.WithFields(logrus.Fields{
			"polarity": rec.Polarity,
			"field_ut": rec.Field,
			"time":     rec.StepCounter,
		}).Info("resuming sweep from checkpoint")
	} else {
		c.state.HApplied = c.cfg.HEq
		if err := c.driver.Integrate(c.cfg.EquilibrationTime); err != nil {
			return fmt.Errorf("equilibration: %w", err)
		}
	}

	// A negative saved polarity still starts on the negative branch; a
	// positive one skips it.
	first := int64(-1)
	if startPolarity > 0 {
		first = startPolarity
	}

	for p := first; p < 2; p += 2 {
		start := c.cfg.Bounds.Min
		if rec != nil {
			var run bool
			if start, run = BranchStart(rec.Polarity, p, rec.Field, c.cfg.Bounds); !run {
				continue
			}
		}

		if err := c.branch(ctx, p, start); err != nil {
			return err
		}

		c.state.Polarity = p + 2
		c.state.Field = c.cfg.Bounds.Min
	}

	c.state.Polarity = checkpoint.PolarityDone
	c.state.Field = c.cfg.Bounds.Min
	c.phase = PhaseDone
	c.log.WithField("points", c.emitted).Info("sweep done")
	return nil
}

func (c *Controller) branch(ctx context.Context, polarity, field int64) error {
	if polarity < 0 {
		c.phase = PhaseBranchNegative
	} else {
		c.phase = PhaseBranchPositive
	}
	c.state.Polarity = polarity
	c.state.Field = field

	log := c.log.WithField("branch", c.phase.String())
	log.WithField("field_ut", field).Debug("branch start")

	for field <= c.cfg.Bounds.Max {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.state.HApplied = Tesla(field, polarity)
		c.stats.Reset()

		start := c.state.Time
		samples := 0
		for c.state.Time < start+c.cfg.LoopTime {
			if err := c.driver.Integrate(c.cfg.PartialTime); err != nil {
				return fmt.Errorf("field %d uT: %w", field, err)
			}
			c.stats.Sample()
			samples++
		}

		pt := Point{
			Index:     c.emitted,
			Polarity:  polarity,
			Field:     field,
			HApplied:  c.state.HApplied,
			StartTime: start,
			EndTime:   c.state.Time,
			Samples:   samples,
		}

		field += c.cfg.Bounds.Inc
		c.state.Field = field

		if err := c.out.Emit(pt); err != nil {
			return fmt.Errorf("emit field %d uT: %w", pt.Field, err)
		}
		c.emitted++
	}
	return nil
}
