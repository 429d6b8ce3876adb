package integrators

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/magsim/internal/compute"
	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

var ErrDiverged = errors.New("integrators: spin diverged")

// llg holds the scratch buffers shared by the LLG kernels. Thermal noise is
// drawn serially before the phases run so every backend sees the same
// sequence.
type llg struct {
	sys   *spins.System
	state *sim.RunState
	rng   *rand.Rand

	noise []spins.Vec
	field []spins.Vec
	delta []spins.Vec
	next  []spins.Vec
}

func newLLG(sys *spins.System, state *sim.RunState, rng *rand.Rand) llg {
	n := sys.Len()
	return llg{
		sys:   sys,
		state: state,
		rng:   rng,
		noise: make([]spins.Vec, n),
		field: make([]spins.Vec, n),
		delta: make([]spins.Vec, n),
		next:  make([]spins.Vec, n),
	}
}

func (l *llg) thermal() {
	sigma := l.sys.ThermalSigma()
	if sigma == 0 {
		clear(l.noise)
		return
	}
	for i := range l.noise {
		l.noise[i] = spins.Vec{
			sigma * l.rng.NormFloat64(),
			sigma * l.rng.NormFloat64(),
			sigma * l.rng.NormFloat64(),
		}
	}
}

func checkSpin(i int, v spins.Vec) error {
	if math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsNaN(v[2]) {
		return fmt.Errorf("%w: site %d", ErrDiverged, i)
	}
	return nil
}

// Heun is the predictor-corrector LLG integrator.
type Heun struct {
	llg
}

func NewHeun(sys *spins.System, state *sim.RunState, rng *rand.Rand) *Heun {
	return &Heun{llg: newLLG(sys, state, rng)}
}

func (h *Heun) Name() string { return "heun" }

func (h *Heun) Step(b compute.Backend) error {
	h.thermal()
	happ := h.state.HApplied
	dt := h.sys.Dt
	s := h.sys.Spins

	predict := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			f := h.sys.FieldAt(s, i, happ).Add(h.noise[i])
			h.delta[i] = h.sys.LLG(s[i], f)
			h.next[i] = s[i].Add(h.delta[i].Scale(dt)).Unit()
		}
		return nil
	}
	correct := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			f := h.sys.FieldAt(h.next, i, happ).Add(h.noise[i])
			d := h.sys.LLG(h.next[i], f)
			h.field[i] = s[i].Add(h.delta[i].Add(d).Scale(dt / 2))
		}
		return nil
	}
	commit := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			v := h.field[i].Unit()
			if err := checkSpin(i, v); err != nil {
				return err
			}
			s[i] = v
		}
		return nil
	}
	return b.Run(len(s), predict, correct, commit)
}
