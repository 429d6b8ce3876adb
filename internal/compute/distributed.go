package compute

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Distributed splits every phase into contiguous domains, one per worker.
type Distributed struct {
	workers int
}

// NewDistributed returns a backend with the given worker count; zero or
// less means one per CPU.
func NewDistributed(workers int) *Distributed {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Distributed{workers: workers}
}

func (d *Distributed) Name() string    { return fmt.Sprintf("distributed(%d)", d.workers) }
func (d *Distributed) Available() bool { return d.workers > 1 }
func (d *Distributed) Workers() int    { return d.workers }
func (d *Distributed) Cleanup()        {}

func (d *Distributed) Run(n int, phases ...Phase) error {
	chunk := (n + d.workers - 1) / d.workers
	if chunk == 0 {
		return nil
	}

	for _, ph := range phases {
		var g errgroup.Group
		for start := 0; start < n; start += chunk {
			end := min(start+chunk, n)
			g.Go(func() error {
				return ph(start, end)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
