// Package spins holds the classical spin chain integrated by the kernels in
// package integrators.
//
// Spins are unit vectors on a periodic chain. Fields are in Tesla and
// energies in Joules.
package spins

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	// Gamma is the gyromagnetic ratio in rad/(s T).
	Gamma = 1.76e11
	// Boltzmann constant in J/K.
	KB = 1.380649e-23
	// MuB is the Bohr magneton in J/T.
	MuB = 9.2740100783e-24
)

type Vec [3]float64

func (v Vec) Add(w Vec) Vec       { return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec) Sub(w Vec) Vec       { return Vec{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec) Scale(a float64) Vec { return Vec{a * v[0], a * v[1], a * v[2]} }
func (v Vec) Dot(w Vec) float64   { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }
func (v Vec) Norm() float64       { return math.Sqrt(v.Dot(v)) }

func (v Vec) Cross(w Vec) Vec {
	return Vec{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Unit returns v scaled to length one. The zero vector maps to +z.
func (v Vec) Unit() Vec {
	n := v.Norm()
	if n == 0 {
		return Vec{0, 0, 1}
	}
	return v.Scale(1 / n)
}

// Direction returns the unit vector for polar angle theta and azimuth phi,
// both in degrees.
func Direction(theta, phi float64) Vec {
	t := theta * math.Pi / 180
	p := phi * math.Pi / 180
	return Vec{math.Sin(t) * math.Cos(p), math.Sin(t) * math.Sin(p), math.Cos(t)}
}

type Params struct {
	N           int
	Moment      float64 // mu_s, J/T
	Anisotropy  float64 // k_u, J
	Exchange    float64 // J_ij, J
	Damping     float64
	Temperature float64 // K
	Dt          float64 // s
	FieldDir    Vec

	// Constrained marks the spins moved by constrained Monte Carlo. Nil
	// means every spin.
	Constrained []bool
	// ConstraintDir is the direction the constrained magnetisation is held along.
	ConstraintDir Vec
}

func (p Params) Validate() error {
	switch {
	case p.N < 2:
		return fmt.Errorf("spins: need at least 2 spins, got %d", p.N)
	case p.Moment <= 0:
		return fmt.Errorf("spins: moment must be positive, got %g", p.Moment)
	case p.Dt <= 0:
		return fmt.Errorf("spins: dt must be positive, got %g", p.Dt)
	case p.Damping < 0:
		return fmt.Errorf("spins: damping must be non-negative, got %g", p.Damping)
	case p.Temperature < 0:
		return fmt.Errorf("spins: temperature must be non-negative, got %g", p.Temperature)
	case p.Constrained != nil && len(p.Constrained) != p.N:
		return fmt.Errorf("spins: constraint mask has %d entries for %d spins", len(p.Constrained), p.N)
	}
	return nil
}

// System is the spin chain plus the uniform extra fields written by hooks.
type System struct {
	Params
	Spins []Vec

	// Demag and Lagrange are uniform fields in Tesla added to every site.
	Demag    Vec
	Lagrange Vec
}

// New returns a chain with every spin along +z.
func New(p Params) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.FieldDir == (Vec{}) {
		p.FieldDir = Vec{0, 0, 1}
	}
	p.FieldDir = p.FieldDir.Unit()
	if p.ConstraintDir == (Vec{}) {
		p.ConstraintDir = Vec{0, 0, 1}
	}
	p.ConstraintDir = p.ConstraintDir.Unit()

	s := &System{Params: p, Spins: make([]Vec, p.N)}
	for i := range s.Spins {
		s.Spins[i] = Vec{0, 0, 1}
	}
	return s, nil
}

// Randomize points every spin in a uniformly random direction.
func (s *System) Randomize(rng *rand.Rand) {
	for i := range s.Spins {
		s.Spins[i] = Vec{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Unit()
	}
}

func (s *System) Len() int { return len(s.Spins) }

func (s *System) neighbours(i int) (int, int) {
	n := len(s.Spins)
	return (i + n - 1) % n, (i + 1) % n
}

// IsConstrained reports whether spin i takes part in constrained moves.
func (s *System) IsConstrained(i int) bool {
	return s.Constrained == nil || s.Constrained[i]
}

// FieldAt is the effective field on site i of the configuration spins
// under applied field h. The applied field acts along FieldDir.
func (s *System) FieldAt(spins []Vec, i int, h float64) Vec {
	l, r := s.neighbours(i)
	si := spins[i]

	f := s.FieldDir.Scale(h)
	f[2] += 2 * s.Anisotropy / s.Moment * si[2]
	f = f.Add(spins[l].Add(spins[r]).Scale(s.Exchange / s.Moment))
	return f.Add(s.Demag).Add(s.Lagrange)
}

// EffectiveField is FieldAt on the current configuration.
func (s *System) EffectiveField(i int, h float64) Vec {
	return s.FieldAt(s.Spins, i, h)
}

// SiteEnergy is the energy of site i if it held spin v, all other spins fixed.
func (s *System) SiteEnergy(i int, v Vec, h float64) float64 {
	l, r := s.neighbours(i)
	ext := s.FieldDir.Scale(h).Add(s.Demag).Add(s.Lagrange)

	e := -s.Anisotropy * v[2] * v[2]
	e -= s.Exchange * v.Dot(s.Spins[l].Add(s.Spins[r]))
	e -= s.Moment * v.Dot(ext)
	return e
}

// PairEnergy is the energy change of moving spins i and j to vi and vj
// together. It counts the i-j bond once when the two are neighbours.
func (s *System) PairEnergy(i, j int, vi, vj Vec, h float64) float64 {
	oi, oj := s.Spins[i], s.Spins[j]

	dE := s.SiteEnergy(i, vi, h) - s.SiteEnergy(i, oi, h)
	s.Spins[i] = vi
	dE += s.SiteEnergy(j, vj, h) - s.SiteEnergy(j, oj, h)
	s.Spins[i] = oi
	return dE
}

// Magnetisation is the mean spin vector.
func (s *System) Magnetisation() Vec {
	var m Vec
	for _, v := range s.Spins {
		m = m.Add(v)
	}
	return m.Scale(1 / float64(len(s.Spins)))
}

// Snapshot copies the spin configuration.
func (s *System) Snapshot() [][3]float64 {
	out := make([][3]float64, len(s.Spins))
	for i, v := range s.Spins {
		out[i] = v
	}
	return out
}

// Restore loads a configuration taken with Snapshot.
func (s *System) Restore(spins [][3]float64) error {
	if len(spins) != len(s.Spins) {
		return fmt.Errorf("spins: snapshot has %d spins, system has %d", len(spins), len(s.Spins))
	}
	for i, v := range spins {
		s.Spins[i] = Vec(v).Unit()
	}
	return nil
}

// ThermalSigma is the standard deviation of each thermal field component.
func (s *System) ThermalSigma() float64 {
	if s.Temperature == 0 || s.Damping == 0 {
		return 0
	}
	return math.Sqrt(2 * s.Damping * KB * s.Temperature / (Gamma * s.Moment * s.Dt))
}

// LLG is the Landau-Lifshitz-Gilbert torque on spin v in field h.
func (s *System) LLG(v, h Vec) Vec {
	pre := -Gamma / (1 + s.Damping*s.Damping)
	sxh := v.Cross(h)
	return sxh.Add(v.Cross(sxh).Scale(s.Damping)).Scale(pre)
}
