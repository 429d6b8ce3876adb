package compute

import "errors"

var ErrUnavailable = errors.New("compute: backend not available")

// Phase processes indices [lo, hi).
type Phase func(lo, hi int) error

type Backend interface {
	Name() string
	Available() bool
	// Run executes phases in order over n indices. A phase starts only
	// after the previous one has finished everywhere.
	Run(n int, phases ...Phase) error
	Cleanup()
}

type Serial struct{}

func NewSerial() *Serial { return &Serial{} }

func (Serial) Name() string    { return "serial" }
func (Serial) Available() bool { return true }
func (Serial) Cleanup()        {}

func (Serial) Run(n int, phases ...Phase) error {
	for _, ph := range phases {
		if err := ph(0, n); err != nil {
			return err
		}
	}
	return nil
}
