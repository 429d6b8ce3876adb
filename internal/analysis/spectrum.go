package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/magsim/internal/storage"
)

// Power is one bin of a one-sided spectrum.
type Power struct {
	Frequency float64 // Hz
	Power     float64
}

// Spectrum returns the Hann-windowed power spectrum of values sampled
// every interval seconds. The mean is removed first, so bin 0 carries no
// offset.
func Spectrum(values []float64, interval float64) ([]Power, error) {
	n := len(values)
	if n < 4 || interval <= 0 {
		return nil, ErrTooFewPoints
	}
	mean := stat.Mean(values, nil)
	x := make([]float64, n)
	for i, v := range values {
		x[i] = v - mean
	}
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)
	out := make([]Power, n/2+1)
	for k := range out {
		a := cmplx.Abs(coeffs[k])
		out[k] = Power{
			Frequency: float64(k) / (float64(n) * interval),
			Power:     a * a / float64(n),
		}
	}
	return out, nil
}

// Peak returns the strongest non-zero frequency bin.
func Peak(bins []Power) (Power, bool) {
	var best Power
	found := false
	for _, p := range bins[min(1, len(bins)):] {
		if !found || p.Power > best.Power {
			best, found = p, true
		}
	}
	return best, found
}

// Trace extracts m and the sampling interval in seconds from rows emitted
// at a fixed step spacing.
func Trace(rows []storage.Row, dt float64) ([]float64, float64, error) {
	if len(rows) < 2 {
		return nil, 0, ErrTooFewPoints
	}
	m := make([]float64, len(rows))
	for i, r := range rows {
		m[i] = r.M
	}
	steps := float64(rows[1].EndTime - rows[0].EndTime)
	return m, steps * dt, nil
}
