package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCaps() []Capabilities {
	return []Capabilities{
		{},
		{Distributed: true},
		{Accelerator: true},
		{Distributed: true, Accelerator: true},
	}
}

// fullRouter registers a tagged step function on every route.
func fullRouter(hits map[Route]int) *Router {
	r := NewRouter()
	for _, k := range Kinds {
		for _, b := range []Backend{BackendSerial, BackendDistributed, BackendAccelerator} {
			route := Route{Kind: k, Backend: b}
			r.Register(k, b, func() error {
				hits[route]++
				return nil
			})
		}
	}
	return r
}

func TestSelect_Table(t *testing.T) {
	tests := []struct {
		kind    IntegratorKind
		caps    Capabilities
		backend Backend
		err     error
	}{
		{HeunLLG, Capabilities{}, BackendSerial, nil},
		{HeunLLG, Capabilities{Distributed: true}, BackendDistributed, nil},
		{HeunLLG, Capabilities{Accelerator: true}, BackendAccelerator, nil},
		{HeunLLG, Capabilities{Distributed: true, Accelerator: true}, BackendAccelerator, nil},
		{MidpointLLG, Capabilities{}, BackendSerial, nil},
		{MidpointLLG, Capabilities{Accelerator: true}, BackendSerial, nil},
		{MidpointLLG, Capabilities{Distributed: true}, BackendDistributed, nil},
		{MidpointLLG, Capabilities{Distributed: true, Accelerator: true}, BackendDistributed, nil},
		{MonteCarlo, Capabilities{}, BackendSerial, nil},
		{MonteCarlo, Capabilities{Accelerator: true}, BackendSerial, nil},
		{MonteCarlo, Capabilities{Distributed: true}, "", ErrUnsupportedCombination},
		{ConstrainedMonteCarlo, Capabilities{}, BackendSerial, nil},
		{ConstrainedMonteCarlo, Capabilities{Distributed: true}, "", ErrUnsupportedCombination},
		{HybridConstrainedMonteCarlo, Capabilities{}, BackendSerial, nil},
		{HybridConstrainedMonteCarlo, Capabilities{Distributed: true, Accelerator: true}, "", ErrUnsupportedCombination},
		{IntegratorKind(5), Capabilities{}, "", ErrUnknownIntegrator},
		{IntegratorKind(-1), Capabilities{Distributed: true}, "", ErrUnknownIntegrator},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.caps.String(), func(t *testing.T) {
			backend, err := Select(tt.kind, tt.caps)
			if tt.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				assert.True(t, IsDispatchError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, backend)
		})
	}
}

func TestResolve_TotalAndDeterministic(t *testing.T) {
	hits := make(map[Route]int)
	r := fullRouter(hits)

	kinds := append([]IntegratorKind{IntegratorKind(-3), IntegratorKind(42)}, Kinds...)
	for _, k := range kinds {
		for _, caps := range allCaps() {
			first, err1 := r.Resolve(k, caps)
			second, err2 := r.Resolve(k, caps)

			if err1 != nil {
				require.Error(t, err2, "%s %s", k, caps)
				assert.True(t, errors.Is(err1, ErrUnknownIntegrator) || errors.Is(err1, ErrUnsupportedCombination))
				assert.Equal(t, err1.Error(), err2.Error())
				continue
			}
			require.NoError(t, err2)
			assert.Equal(t, first.Route, second.Route)
			assert.Equal(t, k, first.Kind)
		}
	}
}

func TestResolve_ReturnsRegisteredFunction(t *testing.T) {
	hits := make(map[Route]int)
	r := fullRouter(hits)

	res, err := r.Resolve(HeunLLG, Capabilities{Distributed: true})
	require.NoError(t, err)
	require.NoError(t, res.Step())

	assert.Equal(t, 1, hits[Route{Kind: HeunLLG, Backend: BackendDistributed}])
	assert.Len(t, hits, 1)
}

func TestResolve_MissingRegistrationIsUnknown(t *testing.T) {
	r := NewRouter()
	r.Register(HeunLLG, BackendSerial, func() error { return nil })

	_, err := r.Resolve(HeunLLG, Capabilities{Accelerator: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIntegrator)

	var de *DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, BackendAccelerator, de.Backend)
}

func TestResolve_NoSilentFallback(t *testing.T) {
	r := NewRouter()
	r.Register(MonteCarlo, BackendSerial, func() error { return nil })
	r.Register(HeunLLG, BackendDistributed, func() error { return nil })

	_, err := r.Resolve(MonteCarlo, Capabilities{Distributed: true})
	assert.ErrorIs(t, err, ErrUnsupportedCombination)
}

func TestParseIntegrator(t *testing.T) {
	tests := []struct {
		in   string
		want IntegratorKind
		err  bool
	}{
		{"llg-heun", HeunLLG, false},
		{" LLG-Midpoint ", MidpointLLG, false},
		{"monte-carlo", MonteCarlo, false},
		{"constrained-monte-carlo", ConstrainedMonteCarlo, false},
		{"hybrid-constrained-monte-carlo", HybridConstrainedMonteCarlo, false},
		{"heun", HeunLLG, false},
		{"cmc", ConstrainedMonteCarlo, false},
		{"0", HeunLLG, false},
		{"2", MidpointLLG, false},
		{"4", HybridConstrainedMonteCarlo, false},
		{"9", IntegratorKind(9), false},
		{"rk4", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseIntegrator(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrUnknownIntegrator, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestIntegratorKind_Stochastic(t *testing.T) {
	want := map[IntegratorKind]bool{
		HeunLLG:                     false,
		MidpointLLG:                 false,
		MonteCarlo:                  true,
		ConstrainedMonteCarlo:       true,
		HybridConstrainedMonteCarlo: true,
	}
	for _, k := range Kinds {
		assert.Equal(t, want[k], k.Stochastic(), "%s", k)
	}
	assert.False(t, IntegratorKind(42).Stochastic())
}
