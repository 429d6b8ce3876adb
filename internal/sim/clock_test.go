package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_AdvanceIncrementsByOne(t *testing.T) {
	state := NewRunState()
	c := NewClock(state, Hooks{})

	c.Advance()
	assert.Equal(t, uint64(1), c.Now())
	c.Advance()
	c.Advance()
	assert.Equal(t, uint64(3), c.Now())
	assert.Equal(t, uint64(3), state.Time, "clock writes through to run state")
}

func TestClock_StartsAtRestoredValue(t *testing.T) {
	state := &RunState{Time: 5000}
	c := NewClock(state, Hooks{})

	for k := 1; k <= 250; k++ {
		prev := c.Now()
		c.Advance()
		assert.Equal(t, prev+1, c.Now(), "never skips")
		assert.Equal(t, uint64(5000+k), c.Now())
	}
}

func TestClock_HookOrder(t *testing.T) {
	state := NewRunState()
	var calls []string
	var seen []uint64

	c := NewClock(state, Hooks{
		MoveSource: func() {
			calls = append(calls, "source")
			seen = append(seen, state.Time)
		},
		RecomputeField:   func() { calls = append(calls, "field") },
		UpdateConstraint: func() { calls = append(calls, "constraint") },
	})

	c.Advance()
	c.Advance()

	assert.Equal(t, []string{"source", "field", "constraint", "source", "field", "constraint"}, calls)
	assert.Equal(t, []uint64{1, 2}, seen, "hooks observe the incremented counter")
}

func TestClock_NilHooksSkipped(t *testing.T) {
	state := NewRunState()
	fired := 0
	c := NewClock(state, Hooks{UpdateConstraint: func() { fired++ }})

	c.Advance()
	assert.Equal(t, 1, fired)
	assert.Equal(t, uint64(1), c.Now())
}
