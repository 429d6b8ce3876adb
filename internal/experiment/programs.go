package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/magsim/internal/checkpoint"
	"github.com/san-kum/magsim/internal/sweep"
)

// Benchmark integrates total_time steps at the equilibrium field and
// reports the step rate.
type Benchmark struct {
	StepsPerSecond float64
}

func (b *Benchmark) Name() string { return "benchmark" }

func (b *Benchmark) Run(ctx context.Context, env *Env) error {
	if err := env.restoreClock(ctx); err != nil {
		return err
	}
	cfg := env.Config.Sweep
	env.State.HApplied = cfg.HEq

	start := time.Now()
	if err := env.Driver.Integrate(remaining(env.State.Time, cfg.TotalTime)); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if elapsed > 0 {
		b.StepsPerSecond = float64(env.Driver.Steps()) / elapsed.Seconds()
	}
	env.Log.WithFields(logrus.Fields{
		"steps":         env.Driver.Steps(),
		"elapsed":       elapsed.Round(time.Millisecond),
		"steps_per_sec": fmt.Sprintf("%.1f", b.StepsPerSecond),
	}).Info("benchmark done")
	env.Metrics["steps_per_sec"] = b.StepsPerSecond
	return nil
}

// TimeSeries integrates at the equilibrium field until total_time and emits
// one point per partial_time block.
type TimeSeries struct{}

func (TimeSeries) Name() string { return "time-series" }

func (TimeSeries) Run(ctx context.Context, env *Env) error {
	if err := env.restoreClock(ctx); err != nil {
		return err
	}
	cfg := env.Config.Sweep
	if cfg.PartialTime == 0 {
		return &sweep.ConfigError{Field: "partial_time", Value: cfg.PartialTime, Reason: "must be positive"}
	}

	env.State.HApplied = cfg.HEq
	field := sweep.Quantize(cfg.HEq, 1)
	index := 0
	for env.State.Time < cfg.TotalTime {
		if err := ctx.Err(); err != nil {
			return err
		}
		env.Stats.Reset()
		start := env.State.Time
		if err := env.Driver.Integrate(min(cfg.PartialTime, cfg.TotalTime-start)); err != nil {
			return err
		}
		env.Stats.Sample()

		pt := sweep.Point{
			Index:     index,
			Polarity:  env.State.Polarity,
			Field:     field,
			HApplied:  env.State.HApplied,
			StartTime: start,
			EndTime:   env.State.Time,
			Samples:   1,
		}
		if err := env.Out.Emit(pt); err != nil {
			return fmt.Errorf("emit t=%d: %w", pt.EndTime, err)
		}
		index++
	}
	return nil
}

// Hysteresis runs the two-branch field sweep.
type Hysteresis struct {
	Controller *sweep.Controller
}

func (h *Hysteresis) Name() string { return "hysteresis" }

func (h *Hysteresis) Run(ctx context.Context, env *Env) error {
	sc := env.Config.Sweep
	bounds, err := sweep.NewBounds(sc.HMin, sc.HMax, sc.HInc)
	if err != nil {
		return err
	}

	cfg := sweep.Config{
		Bounds:                 bounds,
		HEq:                    sc.HEq,
		EquilibrationTime:      sc.EquilibrationTime,
		LoopTime:               sc.LoopTime,
		PartialTime:            sc.PartialTime,
		Resume:                 env.Config.Checkpoint.Continue,
		AllowMissingCheckpoint: env.Config.Checkpoint.AllowMissing,
	}

	c, err := sweep.New(cfg, env.State, env.Driver, env.Stats, env.Out, env.Checkpoint, env.Log)
	if err != nil {
		return err
	}
	c.OnResume = env.restoreSpins
	h.Controller = c

	err = c.Run(ctx)
	env.Mode = c.Mode()
	return err
}

func remaining(now, total uint64) uint64 {
	if now >= total {
		return 0
	}
	return total - now
}

// restoreClock resumes the step counter and spins for the programs that
// have no sweep position to restore.
func (env *Env) restoreClock(ctx context.Context) error {
	if !env.Config.Checkpoint.Continue {
		return nil
	}
	rec, ok, err := env.Checkpoint.LoadResumeState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if !env.Config.Checkpoint.AllowMissing {
			return checkpoint.Inconsistent("resume requested but no checkpoint record exists", nil)
		}
		env.Mode = sweep.StartColdMissingCheckpoint
		env.Log.Warn("resume requested but no checkpoint found; starting cold")
		return nil
	}
	if err := rec.Resumable(); err != nil {
		return err
	}
	if err := env.restoreSpins(rec); err != nil {
		return err
	}
	env.State.Time = rec.StepCounter
	env.Mode = sweep.StartResumed
	return nil
}
