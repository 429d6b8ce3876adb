package compute

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerial_RunsPhasesInOrderOverWholeRange(t *testing.T) {
	var calls []string
	err := NewSerial().Run(10,
		func(lo, hi int) error {
			assert.Equal(t, 0, lo)
			assert.Equal(t, 10, hi)
			calls = append(calls, "a")
			return nil
		},
		func(lo, hi int) error {
			calls = append(calls, "b")
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestDistributed_CoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{1, 7, 64, 1001} {
		for _, workers := range []int{2, 3, 8, 2000} {
			hits := make([]int32, n)
			err := NewDistributed(workers).Run(n, func(lo, hi int) error {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			})
			require.NoError(t, err)
			for i, h := range hits {
				require.EqualValues(t, 1, h, "n=%d workers=%d index=%d", n, workers, i)
			}
		}
	}
}

func TestDistributed_PhaseBarrier(t *testing.T) {
	const n = 100
	first := make([]int, n)
	second := make([]int, n)

	err := NewDistributed(4).Run(n,
		func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				first[i] = i
			}
			return nil
		},
		func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				second[i] = first[(i+1)%n] + first[(i+n-1)%n]
			}
			return nil
		},
	)
	require.NoError(t, err)
	for i := range second {
		assert.Equal(t, (i+1)%n+(i+n-1)%n, second[i])
	}
}

func TestDistributed_StopsOnError(t *testing.T) {
	boom := errors.New("nan")
	ran := false
	err := NewDistributed(4).Run(16,
		func(lo, hi int) error {
			if lo == 0 {
				return boom
			}
			return nil
		},
		func(lo, hi int) error {
			ran = true
			return nil
		},
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDistributed_Availability(t *testing.T) {
	assert.False(t, NewDistributed(1).Available())
	assert.True(t, NewDistributed(2).Available())
	assert.Positive(t, NewDistributed(0).Workers())
}

func TestAccelerator_DefaultBuildUnavailable(t *testing.T) {
	a := NewAccelerator()
	if a.Available() {
		t.Skip("device present")
	}
	assert.ErrorIs(t, a.Run(4, func(lo, hi int) error { return nil }), ErrUnavailable)
}
