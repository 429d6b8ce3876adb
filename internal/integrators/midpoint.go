package integrators

import (
	"math/rand"

	"github.com/san-kum/magsim/internal/compute"
	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Midpoint is the implicit midpoint LLG integrator, solved by fixed-point
// iteration. It conserves the spin length to round-off.
type Midpoint struct {
	llg
	Iterations int
}

func NewMidpoint(sys *spins.System, state *sim.RunState, rng *rand.Rand) *Midpoint {
	return &Midpoint{llg: newLLG(sys, state, rng), Iterations: 4}
}

func (m *Midpoint) Name() string { return "midpoint" }

func (m *Midpoint) Step(b compute.Backend) error {
	m.thermal()
	happ := m.state.HApplied
	dt := m.sys.Dt
	s := m.sys.Spins

	// delta holds the midpoint configuration, next the end-of-step guess.
	seed := func(lo, hi int) error {
		copy(m.next[lo:hi], s[lo:hi])
		return nil
	}
	mid := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			m.delta[i] = s[i].Add(m.next[i]).Scale(0.5)
		}
		return nil
	}
	advance := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			f := m.sys.FieldAt(m.delta, i, happ).Add(m.noise[i])
			m.next[i] = s[i].Add(m.sys.LLG(m.delta[i], f).Scale(dt))
		}
		return nil
	}
	commit := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			v := m.next[i].Unit()
			if err := checkSpin(i, v); err != nil {
				return err
			}
			s[i] = v
		}
		return nil
	}

	phases := []compute.Phase{seed}
	for k := 0; k < m.Iterations; k++ {
		phases = append(phases, mid, advance)
	}
	phases = append(phases, commit)
	return b.Run(len(s), phases...)
}
