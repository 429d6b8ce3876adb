package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// IntegratorKind identifies a time-integration algorithm. The set is closed;
// values outside it resolve to ErrUnknownIntegrator.
type IntegratorKind int

const (
	HeunLLG IntegratorKind = iota
	MonteCarlo
	MidpointLLG
	ConstrainedMonteCarlo
	HybridConstrainedMonteCarlo
)

// Kinds lists every valid integrator in legacy id order.
var Kinds = []IntegratorKind{
	HeunLLG,
	MonteCarlo,
	MidpointLLG,
	ConstrainedMonteCarlo,
	HybridConstrainedMonteCarlo,
}

var kindNames = map[IntegratorKind]string{
	HeunLLG:                     "llg-heun",
	MidpointLLG:                 "llg-midpoint",
	MonteCarlo:                  "monte-carlo",
	ConstrainedMonteCarlo:       "constrained-monte-carlo",
	HybridConstrainedMonteCarlo: "hybrid-constrained-monte-carlo",
}

var kindAliases = map[string]IntegratorKind{
	"heun":     HeunLLG,
	"midpoint": MidpointLLG,
	"mc":       MonteCarlo,
	"cmc":      ConstrainedMonteCarlo,
	"hybrid":   HybridConstrainedMonteCarlo,
}

func (k IntegratorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("integrator(%d)", int(k))
}

// Valid reports whether k is one of the known integrators.
func (k IntegratorKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Stochastic reports whether k is a trial-move integrator.
func (k IntegratorKind) Stochastic() bool {
	switch k {
	case MonteCarlo, ConstrainedMonteCarlo, HybridConstrainedMonteCarlo:
		return true
	}
	return false
}

// ParseIntegrator accepts a config name, a short alias or a legacy numeric id.
func ParseIntegrator(s string) (IntegratorKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	// Numeric ids pass through unchecked; Router.Resolve rejects unknown ones.
	if id, err := strconv.Atoi(s); err == nil {
		return IntegratorKind(id), nil
	}
	return IntegratorKind(-1), fmt.Errorf("%w: %q", ErrUnknownIntegrator, s)
}

// Capabilities is the backend capability set detected at process start.
type Capabilities struct {
	Distributed bool
	Accelerator bool
}

func (c Capabilities) String() string {
	return fmt.Sprintf("distributed=%t accelerator=%t", c.Distributed, c.Accelerator)
}

// Backend names an execution path for a step function.
type Backend string

const (
	BackendSerial      Backend = "serial"
	BackendDistributed Backend = "distributed"
	BackendAccelerator Backend = "accelerator"
)

// StepFunc advances the ambient simulation state by exactly one time unit.
type StepFunc func() error

// Hook is a per-step side effect. Cadence gating, if any, is internal.
type Hook func()

// RunState is the single-writer run state shared by the clock and the
// sweep controller. Step functions and hooks only read it.
type RunState struct {
	// Time is the global step counter.
	Time uint64
	// Polarity is the active sweep branch (-1 or +1, 3 once done).
	Polarity int64
	// Field is the quantized field (uT) of the next field point.
	Field int64
	// HApplied is the applied field in Tesla seen by the step functions.
	HApplied float64
}

// NewRunState returns a state at time zero on the negative branch.
func NewRunState() *RunState {
	return &RunState{Polarity: -1}
}
