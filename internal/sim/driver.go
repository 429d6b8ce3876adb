package sim

// Driver runs a resolved step function and advances the clock after each
// step. It is the single integrate entry point used by every program.
type Driver struct {
	res   Resolution
	clock *Clock
	steps uint64
}

func NewDriver(res Resolution, clock *Clock) *Driver {
	return &Driver{res: res, clock: clock}
}

// Integrate runs n strictly sequential steps. A failing step stops the
// loop before its clock advance.
func (d *Driver) Integrate(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := d.res.Step(); err != nil {
			return &StepError{Time: d.clock.Now(), Backend: d.res.Backend, Err: err}
		}
		d.clock.Advance()
		d.steps++
	}
	return nil
}

// Steps returns how many steps this driver has completed.
func (d *Driver) Steps() uint64 {
	return d.steps
}

// Route returns the resolved integrator/backend pair.
func (d *Driver) Route() Route {
	return d.res.Route
}
