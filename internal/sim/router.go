package sim

import "fmt"

// Route is a (integrator, backend) pair a step function is registered under.
type Route struct {
	Kind    IntegratorKind
	Backend Backend
}

func (r Route) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.Backend)
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Route
	Step StepFunc
}

// Router maps integrator kinds and backend capabilities onto registered
// step functions.
type Router struct {
	steps map[Route]StepFunc
}

func NewRouter() *Router {
	return &Router{steps: make(map[Route]StepFunc)}
}

// Register installs fn for the given route, replacing any previous one.
func (r *Router) Register(kind IntegratorKind, backend Backend, fn StepFunc) {
	r.steps[Route{Kind: kind, Backend: backend}] = fn
}

// Registered reports whether a step function exists for the route.
func (r *Router) Registered(kind IntegratorKind, backend Backend) bool {
	_, ok := r.steps[Route{Kind: kind, Backend: backend}]
	return ok
}

// Select applies the backend policy without looking at registrations. It
// is total: every pair yields a backend or a classified error.
func Select(kind IntegratorKind, caps Capabilities) (Backend, error) {
	switch kind {
	case HeunLLG:
		switch {
		case caps.Accelerator:
			return BackendAccelerator, nil
		case caps.Distributed:
			return BackendDistributed, nil
		}
		return BackendSerial, nil

	case MidpointLLG:
		// No accelerator kernel yet; the slot falls through.
		if caps.Distributed {
			return BackendDistributed, nil
		}
		return BackendSerial, nil

	case MonteCarlo, ConstrainedMonteCarlo, HybridConstrainedMonteCarlo:
		if caps.Distributed {
			return "", &DispatchError{Kind: kind, Caps: caps, Backend: BackendDistributed, Err: ErrUnsupportedCombination}
		}
		return BackendSerial, nil
	}

	return "", &DispatchError{Kind: kind, Caps: caps, Err: ErrUnknownIntegrator}
}

// Resolve picks exactly one step function for kind under caps. A selected
// route with nothing registered is reported as ErrUnknownIntegrator; there
// is no fallback to another integrator.
func (r *Router) Resolve(kind IntegratorKind, caps Capabilities) (Resolution, error) {
	backend, err := Select(kind, caps)
	if err != nil {
		return Resolution{}, err
	}

	route := Route{Kind: kind, Backend: backend}
	fn, ok := r.steps[route]
	if !ok {
		return Resolution{}, &DispatchError{Kind: kind, Caps: caps, Backend: backend, Err: ErrUnknownIntegrator}
	}
	return Resolution{Route: route, Step: fn}, nil
}
