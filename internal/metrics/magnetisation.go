package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/magsim/internal/spins"
)

// Magnetisation records the reduced magnetisation projected on the field
// direction, plus its vector components.
type Magnetisation struct {
	name string
	sys  *spins.System

	proj   []float64
	length []float64
	comp   [3][]float64
}

func NewMagnetisation(sys *spins.System) *Magnetisation {
	return &Magnetisation{name: "m", sys: sys}
}

func (m *Magnetisation) Name() string { return m.name }

func (m *Magnetisation) Sample() {
	v := m.sys.Magnetisation()
	m.proj = append(m.proj, v.Dot(m.sys.FieldDir))
	m.length = append(m.length, v.Norm())
	for k := range m.comp {
		m.comp[k] = append(m.comp[k], v[k])
	}
}

func (m *Magnetisation) Reset() {
	m.proj = m.proj[:0]
	m.length = m.length[:0]
	for k := range m.comp {
		m.comp[k] = m.comp[k][:0]
	}
}

func (m *Magnetisation) Count() int { return len(m.proj) }

// Value is the mean projected magnetisation.
func (m *Magnetisation) Value() float64 {
	if len(m.proj) == 0 {
		return 0
	}
	return stat.Mean(m.proj, nil)
}

func (m *Magnetisation) StdDev() float64 {
	if len(m.proj) < 2 {
		return 0
	}
	return stat.StdDev(m.proj, nil)
}

// MeanLength is the mean of |m|, the order parameter.
func (m *Magnetisation) MeanLength() float64 {
	if len(m.length) == 0 {
		return 0
	}
	return floats.Sum(m.length) / float64(len(m.length))
}

func (m *Magnetisation) MeanVector() spins.Vec {
	var out spins.Vec
	if len(m.proj) == 0 {
		return out
	}
	for k := range m.comp {
		out[k] = stat.Mean(m.comp[k], nil)
	}
	return out
}
