package experiment

import (
	"math/rand"

	"github.com/san-kum/magsim/internal/compute"
	"github.com/san-kum/magsim/internal/config"
	"github.com/san-kum/magsim/internal/integrators"
	"github.com/san-kum/magsim/internal/sim"
	"github.com/san-kum/magsim/internal/spins"
)

// Backends holds the execution backends available to this process. A nil
// entry means the backend is absent.
type Backends struct {
	Serial      compute.Backend
	Distributed compute.Backend
	Accelerator compute.Backend
}

// Capabilities derives the capability set from the present backends.
func (b Backends) Capabilities() sim.Capabilities {
	return sim.Capabilities{
		Distributed: b.Distributed != nil,
		Accelerator: b.Accelerator != nil,
	}
}

func (b Backends) Get(name sim.Backend) compute.Backend {
	switch name {
	case sim.BackendDistributed:
		return b.Distributed
	case sim.BackendAccelerator:
		return b.Accelerator
	}
	return b.Serial
}

func (b Backends) Cleanup() {
	for _, be := range []compute.Backend{b.Serial, b.Distributed, b.Accelerator} {
		if be != nil {
			be.Cleanup()
		}
	}
}

// DetectCapabilities probes the configured backends once at start-up.
func DetectCapabilities(cfg config.BackendConfig) Backends {
	b := Backends{Serial: compute.NewSerial()}
	if cfg.Workers > 1 {
		b.Distributed = compute.NewDistributed(cfg.Workers)
	}
	if cfg.Accelerator {
		if acc := compute.NewAccelerator(); acc.Available() {
			b.Accelerator = acc
		}
	}
	return b
}

// kernels owns one instance of every integrator so the router can be
// populated before the route is known.
type kernels struct {
	heun     *integrators.Heun
	midpoint *integrators.Midpoint
	mc       *integrators.MonteCarlo
	cmc      *integrators.Constrained
	hybrid   *integrators.Hybrid
}

func newKernels(sys *spins.System, state *sim.RunState, rng *rand.Rand) *kernels {
	return &kernels{
		heun:     integrators.NewHeun(sys, state, rng),
		midpoint: integrators.NewMidpoint(sys, state, rng),
		mc:       integrators.NewMonteCarlo(sys, state, rng),
		cmc:      integrators.NewConstrained(sys, state, rng),
		hybrid:   integrators.NewHybrid(sys, state, rng),
	}
}

// register installs a step function for every kernel on every present
// backend it has a kernel for. Midpoint has no accelerator kernel and the
// Monte Carlo kernels are serial only.
func (k *kernels) register(r *sim.Router, b Backends) {
	llg := func(kind sim.IntegratorKind, step func(compute.Backend) error, names ...sim.Backend) {
		for _, name := range names {
			be := b.Get(name)
			if be == nil {
				continue
			}
			r.Register(kind, name, func() error { return step(be) })
		}
	}
	llg(sim.HeunLLG, k.heun.Step, sim.BackendSerial, sim.BackendDistributed, sim.BackendAccelerator)
	llg(sim.MidpointLLG, k.midpoint.Step, sim.BackendSerial, sim.BackendDistributed)

	r.Register(sim.MonteCarlo, sim.BackendSerial, k.mc.Step)
	r.Register(sim.ConstrainedMonteCarlo, sim.BackendSerial, k.cmc.Step)
	r.Register(sim.HybridConstrainedMonteCarlo, sim.BackendSerial, k.hybrid.Step)
}

// stats returns the trial-move counters of a stochastic kernel.
func (k *kernels) stats(kind sim.IntegratorKind) (integrators.Stats, bool) {
	if !kind.Stochastic() {
		return integrators.Stats{}, false
	}
	var src integrators.Source
	switch kind {
	case sim.MonteCarlo:
		src = k.mc
	case sim.ConstrainedMonteCarlo:
		src = k.cmc
	case sim.HybridConstrainedMonteCarlo:
		src = k.hybrid
	default:
		return integrators.Stats{}, false
	}
	return src.Stats(), true
}
