package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Energy records the mean energy per spin in Joules.
type Energy struct {
	name    string
	sys     *spins.System
	state   *sim.RunState
	samples []float64
}

func NewEnergy(sys *spins.System, state *sim.RunState) *Energy {
	return &Energy{name: "energy", sys: sys, state: state}
}

func (e *Energy) Name() string { return e.name }

// Sample adds the current energy. Bond terms are split between the two
// sites so the sum is the total energy.
func (e *Energy) Sample() {
	h := e.state.HApplied
	total := 0.0
	for i, v := range e.sys.Spins {
		zeeman := -e.sys.Moment * v.Dot(e.sys.FieldDir.Scale(h))
		aniso := -e.sys.Anisotropy * v[2] * v[2]
		site := e.sys.SiteEnergy(i, v, h)
		exchange := site - zeeman - aniso + e.sys.Moment*v.Dot(e.sys.Demag.Add(e.sys.Lagrange))
		total += zeeman + aniso + exchange/2
	}
	e.samples = append(e.samples, total/float64(e.sys.Len()))
}

func (e *Energy) Reset() { e.samples = e.samples[:0] }

func (e *Energy) Value() float64 {
	if len(e.samples) == 0 {
		return 0
	}
	return stat.Mean(e.samples, nil)
}
