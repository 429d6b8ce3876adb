package sim

import (
	"errors"
	"fmt"
)

// Core error classes. Every one of them is terminal for a run.
var (
	// ErrUnknownIntegrator indicates an integrator with no registered step function.
	ErrUnknownIntegrator = errors.New("sim: unknown integrator")

	// ErrUnsupportedCombination indicates a valid integrator requested on a backend it cannot run on.
	ErrUnsupportedCombination = errors.New("sim: unsupported integrator/backend combination")

	// ErrMalformedSweep indicates invalid sweep bounds or timing.
	ErrMalformedSweep = errors.New("sim: malformed sweep configuration")

	// ErrCheckpointInconsistent indicates a resume request that cannot be honoured.
	ErrCheckpointInconsistent = errors.New("sim: checkpoint inconsistent")
)

// DispatchError wraps a resolution failure with the requested combination.
type DispatchError struct {
	Kind    IntegratorKind
	Caps    Capabilities
	Backend Backend
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%v: %s on %s backend (%s)", e.Err, e.Kind, e.Backend, e.Caps)
	}
	return fmt.Sprintf("%v: %s (%s)", e.Err, e.Kind, e.Caps)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// StepError reports a step function failure with the clock value at which
// it happened.
type StepError struct {
	Time    uint64
	Backend Backend
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Time, e.Backend, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsDispatchError reports whether err came out of Router.Resolve.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
