package spins

// Head is a moving field source. Position is in Angstrom.
type Head struct {
	Speed    float64 // m/s
	Dt       float64 // s
	Position float64
}

// Move advances the head by one time step.
func (h *Head) Move() {
	h.Position += h.Speed * h.Dt * 1e10
}

// Demag recomputes the shape demagnetising field from the mean
// magnetisation every Rate steps.
type Demag struct {
	Factors    Vec     // Nx, Ny, Nz; sum to one
	Saturation float64 // mu0 Ms in Tesla
	Rate       uint64

	sys     *System
	now     func() uint64
	Updates int
}

func NewDemag(sys *System, now func() uint64, factors Vec, saturation float64, rate uint64) *Demag {
	if rate == 0 {
		rate = 1
	}
	return &Demag{Factors: factors, Saturation: saturation, Rate: rate, sys: sys, now: now}
}

func (d *Demag) Update() {
	if d.now()%d.Rate != 0 {
		return
	}
	m := d.sys.Magnetisation()
	d.sys.Demag = Vec{
		-d.Saturation * d.Factors[0] * m[0],
		-d.Saturation * d.Factors[1] * m[1],
		-d.Saturation * d.Factors[2] * m[2],
	}
	d.Updates++
}

// Lagrange drives the mean magnetisation toward M along Target by
// integrating the deviation into a multiplier field.
type Lagrange struct {
	M      float64
	N      float64 // gain, Tesla per unit deviation per step
	Target Vec

	sys    *System
	Lambda Vec
}

func NewLagrange(sys *System, m, n float64, target Vec) *Lagrange {
	return &Lagrange{M: m, N: n, Target: target.Unit(), sys: sys}
}

func (l *Lagrange) Update() {
	dev := l.sys.Magnetisation().Sub(l.Target.Scale(l.M))
	l.Lambda = l.Lambda.Add(dev.Scale(l.N))
	l.sys.Lagrange = l.Lambda.Scale(-1)
}
