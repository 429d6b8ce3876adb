//go:build accel

package compute

/*
#cgo LDFLAGS: -L${SRCDIR} -lmagkernels -lstdc++
#include <stdlib.h>

extern int accel_device_count();
extern const char* accel_device_name();
extern void accel_sync();
*/
import "C"

// Accelerator owns the device. Phases are staged through the host domain
// decomposition and synchronised with the device after each Run.
type Accelerator struct {
	available  bool
	deviceName string
	host       *Distributed
}

func NewAccelerator() *Accelerator {
	count := int(C.accel_device_count())
	name := ""
	if count > 0 {
		name = C.GoString(C.accel_device_name())
	}
	return &Accelerator{
		available:  count > 0,
		deviceName: name,
		host:       NewDistributed(0),
	}
}

func (a *Accelerator) Name() string {
	if a.available {
		return "accelerator (" + a.deviceName + ")"
	}
	return "accelerator (not available)"
}

func (a *Accelerator) Available() bool { return a.available }
func (a *Accelerator) Cleanup()        {}

func (a *Accelerator) Run(n int, phases ...Phase) error {
	if !a.available {
		return ErrUnavailable
	}
	if err := a.host.Run(n, phases...); err != nil {
		return err
	}
	C.accel_sync()
	return nil
}
