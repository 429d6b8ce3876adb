package sweep

import (
	"fmt"
	"math"

	"github.com/san-kum/magsim/internal/sim"
)

// MicroTesla is the field quantum: one unit of a quantized field.
const MicroTesla = 1.0e-6

// Tesla converts a quantized field and a polarity to the applied field.
func Tesla(q, polarity int64) float64 {
	return float64(q) * float64(polarity) * MicroTesla
}

// Quantize is the inverse of Tesla for the integer channel.
func Quantize(h float64, polarity int64) int64 {
	if polarity == 0 {
		polarity = 1
	}
	return int64(math.Round(h / float64(polarity) / MicroTesla))
}

// Bounds are the quantized sweep limits. Inc is always positive.
type Bounds struct {
	Min int64
	Max int64
	Inc int64
}

// ConfigError reports a malformed sweep parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", sim.ErrMalformedSweep, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return sim.ErrMalformedSweep
}

// NewBounds quantizes Tesla limits to micro-Tesla. The sign of inc is
// dropped; direction comes from polarity alone.
func NewBounds(hmin, hmax, hinc float64) (Bounds, error) {
	var b Bounds
	var err error
	if b.Min, err = quantizeLimit("h_min", hmin); err != nil {
		return Bounds{}, err
	}
	if b.Max, err = quantizeLimit("h_max", hmax); err != nil {
		return Bounds{}, err
	}
	if b.Inc, err = quantizeLimit("h_inc", math.Abs(hinc)); err != nil {
		return Bounds{}, err
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// quantizeLimit is Quantize for a configured limit. It rejects values the
// integer channel cannot hold.
func quantizeLimit(name string, h float64) (int64, error) {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, &ConfigError{Field: name, Value: h, Reason: "not a finite field"}
	}
	// 2^63 is the first float64 outside int64.
	if q := math.Round(h / MicroTesla); math.Abs(q) >= math.Exp2(63) {
		return 0, &ConfigError{Field: name, Value: h, Reason: "outside the quantized field range"}
	}
	return Quantize(h, 1), nil
}

// Validate checks the preconditions of the state machine. The field walk
// reaches Max+Inc, which must not overflow.
func (b Bounds) Validate() error {
	switch {
	case b.Inc <= 0:
		return &ConfigError{Field: "h_inc", Value: b.Inc, Reason: "increment must be positive"}
	case b.Max < b.Min:
		return &ConfigError{Field: "h_max", Value: b.Max, Reason: fmt.Sprintf("below h_min %d", b.Min)}
	case b.Max > math.MaxInt64-b.Inc:
		return &ConfigError{Field: "h_max", Value: b.Max, Reason: "h_max + h_inc overflows the quantized field range"}
	case b.Max < 0 || b.Min < -b.Max:
		return &ConfigError{Field: "h_min", Value: b.Min, Reason: fmt.Sprintf("outside [-h_max, h_max] with h_max %d", b.Max)}
	}
	return nil
}

// Points returns the number of field points per branch.
func (b Bounds) Points() int {
	return int((b.Max-b.Min)/b.Inc) + 1
}

// OnGrid reports whether q lies on the increment grid anchored at Min.
func (b Bounds) OnGrid(q int64) bool {
	return (q-b.Min)%b.Inc == 0
}
