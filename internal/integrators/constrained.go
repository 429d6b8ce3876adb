package integrators

import (
	"math"
	"math/rand"

	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Constrained is constrained Monte Carlo: spins move in pairs so that the
// magnetisation of the constrained set keeps its direction. The second
// spin of a pair compensates the transverse change of the first.
type Constrained struct {
	sys   *spins.System
	state *sim.RunState
	rng   *rand.Rand

	Sigma float64
	stats Stats

	sites      []int
	e1, e2, e3 spins.Vec
}

func NewConstrained(sys *spins.System, state *sim.RunState, rng *rand.Rand) *Constrained {
	c := &Constrained{sys: sys, state: state, rng: rng, Sigma: 0.1}
	for i := 0; i < sys.Len(); i++ {
		if sys.IsConstrained(i) {
			c.sites = append(c.sites, i)
		}
	}
	c.e3 = sys.ConstraintDir
	ref := spins.Vec{1, 0, 0}
	if math.Abs(c.e3[0]) > 0.9 {
		ref = spins.Vec{0, 1, 0}
	}
	c.e1 = ref.Sub(c.e3.Scale(ref.Dot(c.e3))).Unit()
	c.e2 = c.e3.Cross(c.e1)
	return c
}

func (c *Constrained) Name() string { return "constrained-monte-carlo" }
func (c *Constrained) Stats() Stats { return c.stats }

func (c *Constrained) local(v spins.Vec) spins.Vec {
	return spins.Vec{v.Dot(c.e1), v.Dot(c.e2), v.Dot(c.e3)}
}

func (c *Constrained) global(v spins.Vec) spins.Vec {
	return c.e1.Scale(v[0]).Add(c.e2.Scale(v[1])).Add(c.e3.Scale(v[2]))
}

// parallel is the constrained magnetisation along the constraint direction.
func (c *Constrained) parallel() float64 {
	m := 0.0
	for _, i := range c.sites {
		m += c.sys.Spins[i].Dot(c.e3)
	}
	return m
}

func (c *Constrained) Step() error {
	var accepted uint64
	n := len(c.sites)
	if n < 2 {
		return nil
	}
	for k := 0; k < n; k++ {
		if c.pairTrial() {
			accepted++
		}
	}
	c.Sigma = tune(c.Sigma, accepted, uint64(n))
	return nil
}

func (c *Constrained) pairTrial() bool {
	n := len(c.sites)
	a := c.rng.Intn(n)
	b := c.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return c.pairMove(c.sites[a], c.sites[b])
}

func (c *Constrained) pairMove(i, j int) bool {
	h := c.state.HApplied
	c.stats.Attempts++

	mz := c.parallel()
	oi, oj := c.sys.Spins[i], c.sys.Spins[j]
	li, lj := c.local(oi), c.local(oj)

	ni := c.local(gaussianMove(c.rng, oi, c.Sigma))
	nj := spins.Vec{lj[0] + li[0] - ni[0], lj[1] + li[1] - ni[1], 0}
	perp := nj[0]*nj[0] + nj[1]*nj[1]
	if perp > 1 {
		c.stats.Rejects++
		c.stats.SphereRejects++
		return false
	}
	nj[2] = math.Copysign(math.Sqrt(1-perp), lj[2])

	mzNew := mz + ni[2] - li[2] + nj[2] - lj[2]
	if mz <= 0 || mzNew <= 0 || nj[2] == 0 {
		c.stats.Rejects++
		c.stats.EnergyRejects++
		return false
	}

	vi, vj := c.global(ni), c.global(nj)
	dE := c.sys.PairEnergy(i, j, vi, vj, h)

	p := math.Exp(-dE/(spins.KB*math.Max(c.sys.Temperature, 1e-300))) *
		(mzNew / mz) * (mzNew / mz) * math.Abs(lj[2]/nj[2])
	if c.rng.Float64() >= p {
		c.stats.Rejects++
		c.stats.EnergyRejects++
		return false
	}

	c.sys.Spins[i] = vi
	c.sys.Spins[j] = vj
	return true
}
