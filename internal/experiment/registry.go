package experiment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownProgram = errors.New("experiment: unknown program")

// Program is a top-level simulation protocol run on a prepared Env.
type Program interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

type Registry struct {
	programs map[string]func() Program
}

func NewRegistry() *Registry {
	r := &Registry{programs: make(map[string]func() Program)}

	r.programs["benchmark"] = func() Program { return &Benchmark{} }
	r.programs["time-series"] = func() Program { return &TimeSeries{} }
	r.programs["hysteresis"] = func() Program { return &Hysteresis{} }

	return r
}

// Register adds or replaces a program.
func (r *Registry) Register(name string, fn func() Program) {
	r.programs[name] = fn
}

func (r *Registry) GetProgram(name string) (Program, error) {
	fn, ok := r.programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	return fn(), nil
}

func (r *Registry) ListPrograms() []string {
	names := make([]string, 0, len(r.programs))
	for name := range r.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
