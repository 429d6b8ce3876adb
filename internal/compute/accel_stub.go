//go:build !accel

package compute

type Accelerator struct{}

func NewAccelerator() *Accelerator {
	return &Accelerator{}
}

func (a *Accelerator) Name() string    { return "accelerator (not available)" }
func (a *Accelerator) Available() bool { return false }
func (a *Accelerator) Cleanup()        {}

func (a *Accelerator) Run(n int, phases ...Phase) error {
	return ErrUnavailable
}
