// Package metrics accumulates per-field-point statistics of the spin system.
package metrics

// Metric is sampled after every partial integration block and reset at the
// start of every field point.
type Metric interface {
	Name() string
	Sample()
	Reset()
	Value() float64
}

// Set fans Sample and Reset out to every metric in order.
type Set []Metric

func (s Set) Sample() {
	for _, m := range s {
		m.Sample()
	}
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Values returns the current value of every metric keyed by name.
func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}
