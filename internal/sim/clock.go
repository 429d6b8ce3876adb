package sim

// Hooks holds the per-step side effects. The slots run in declaration order
// on every Advance; nil slots are skipped.
type Hooks struct {
	// MoveSource updates the moving heat/field source position.
	MoveSource Hook
	// RecomputeField refreshes periodically recomputed fields (demag).
	RecomputeField Hook
	// UpdateConstraint updates the constraint multiplier.
	UpdateConstraint Hook
}

// Clock owns the global step counter stored in RunState.Time.
type Clock struct {
	state *RunState
	hooks Hooks
}

func NewClock(state *RunState, hooks Hooks) *Clock {
	return &Clock{state: state, hooks: hooks}
}

// Advance increments the step counter by one and then runs the hooks.
// A moving source must be in place before a dependent field recomputation
// reads it, so the order is fixed.
func (c *Clock) Advance() {
	c.state.Time++

	if c.hooks.MoveSource != nil {
		c.hooks.MoveSource()
	}
	if c.hooks.RecomputeField != nil {
		c.hooks.RecomputeField()
	}
	if c.hooks.UpdateConstraint != nil {
		c.hooks.UpdateConstraint()
	}
}

// Now returns the current step counter.
func (c *Clock) Now() uint64 {
	return c.state.Time
}
