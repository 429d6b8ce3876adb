package integrators

import (
	"math"
	"math/rand"

	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Stats counts Monte Carlo trial moves.
type Stats struct {
	Attempts      uint64
	Rejects       uint64
	SphereRejects uint64
	EnergyRejects uint64
}

func (s Stats) AcceptanceRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return 1 - float64(s.Rejects)/float64(s.Attempts)
}

// Source exposes Monte Carlo statistics.
type Source interface {
	Stats() Stats
}

const (
	minSigma = 1e-3
	maxSigma = 2.0
)

// metropolis accepts a move with energy change dE at temperature t.
func metropolis(rng *rand.Rand, dE, t float64) bool {
	if dE <= 0 {
		return true
	}
	if t == 0 {
		return false
	}
	return rng.Float64() < math.Exp(-dE/(spins.KB*t))
}

// tune nudges the trial width toward half acceptance.
func tune(sigma float64, accepted, attempts uint64) float64 {
	if attempts == 0 {
		return sigma
	}
	if float64(accepted)/float64(attempts) > 0.5 {
		sigma *= 1.1
	} else {
		sigma /= 1.1
	}
	return math.Min(maxSigma, math.Max(minSigma, sigma))
}

func gaussianMove(rng *rand.Rand, v spins.Vec, sigma float64) spins.Vec {
	return spins.Vec{
		v[0] + sigma*rng.NormFloat64(),
		v[1] + sigma*rng.NormFloat64(),
		v[2] + sigma*rng.NormFloat64(),
	}.Unit()
}

// MonteCarlo performs one sweep of N single-spin Metropolis trials per step.
type MonteCarlo struct {
	sys   *spins.System
	state *sim.RunState
	rng   *rand.Rand

	Sigma float64
	stats Stats
}

func NewMonteCarlo(sys *spins.System, state *sim.RunState, rng *rand.Rand) *MonteCarlo {
	return &MonteCarlo{sys: sys, state: state, rng: rng, Sigma: 0.1}
}

func (m *MonteCarlo) Name() string { return "monte-carlo" }
func (m *MonteCarlo) Stats() Stats { return m.stats }

func (m *MonteCarlo) Step() error {
	n := m.sys.Len()
	var accepted uint64
	for k := 0; k < n; k++ {
		if m.trial(m.rng.Intn(n)) {
			accepted++
		}
	}
	m.Sigma = tune(m.Sigma, accepted, uint64(n))
	return nil
}

func (m *MonteCarlo) trial(i int) bool {
	h := m.state.HApplied
	old := m.sys.Spins[i]
	v := gaussianMove(m.rng, old, m.Sigma)

	m.stats.Attempts++
	dE := m.sys.SiteEnergy(i, v, h) - m.sys.SiteEnergy(i, old, h)
	if !metropolis(m.rng, dE, m.sys.Temperature) {
		m.stats.Rejects++
		m.stats.EnergyRejects++
		return false
	}
	m.sys.Spins[i] = v
	return true
}
