package integrators

import (
	"math/rand"

	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Hybrid applies constrained pair moves to the constrained spins and plain
// Metropolis moves to the rest.
type Hybrid struct {
	cmc *Constrained
	mc  *MonteCarlo
	rng *rand.Rand
	sys *spins.System
}

func NewHybrid(sys *spins.System, state *sim.RunState, rng *rand.Rand) *Hybrid {
	return &Hybrid{
		cmc: NewConstrained(sys, state, rng),
		mc:  NewMonteCarlo(sys, state, rng),
		rng: rng,
		sys: sys,
	}
}

func (h *Hybrid) Name() string { return "hybrid-constrained-monte-carlo" }

func (h *Hybrid) Stats() Stats {
	a, b := h.cmc.Stats(), h.mc.Stats()
	return Stats{
		Attempts:      a.Attempts + b.Attempts,
		Rejects:       a.Rejects + b.Rejects,
		SphereRejects: a.SphereRejects + b.SphereRejects,
		EnergyRejects: a.EnergyRejects + b.EnergyRejects,
	}
}

func (h *Hybrid) Step() error {
	n := h.sys.Len()
	var cAcc, cTry, mAcc, mTry uint64
	for k := 0; k < n; k++ {
		i := h.rng.Intn(n)
		if h.sys.IsConstrained(i) {
			if len(h.cmc.sites) < 2 {
				continue
			}
			cTry++
			if h.cmc.pairTrial() {
				cAcc++
			}
			continue
		}
		mTry++
		if h.mc.trial(i) {
			mAcc++
		}
	}
	h.cmc.Sigma = tune(h.cmc.Sigma, cAcc, cTry)
	h.mc.Sigma = tune(h.mc.Sigma, mAcc, mTry)
	return nil
}
