package sweep

import (
	"fmt"

	"github.com/san-kum/magsim/internal/checkpoint"
)

// StartMode records how a sweep was entered.
type StartMode int

const (
	StartCold StartMode = iota
	StartResumed
	// StartColdMissingCheckpoint is a cold start after a resume request
	// found no record. Only reachable with AllowMissingCheckpoint.
	StartColdMissingCheckpoint
)

func (m StartMode) String() string {
	switch m {
	case StartResumed:
		return "resumed"
	case StartColdMissingCheckpoint:
		return "cold (checkpoint missing)"
	}
	return "cold"
}

// BranchStart returns the first field of branch pc when resuming from a
// record saved on branch ps at field fs, and whether the branch runs at
// all. fs is the next field point that had not completed when the record
// was taken, so its sign never changes the outcome.
//
//	ps  pc  start
//	-1  -1  fs
//	-1  +1  b.Min (the resumed branch finished normally)
//	+1  -1  skipped
//	+1  +1  fs
//	 3   *  skipped
func BranchStart(ps, pc, fs int64, b Bounds) (int64, bool) {
	switch {
	case ps >= checkpoint.PolarityDone:
		return 0, false
	case ps < 0 && pc < 0:
		return fs, true
	case ps < 0 && pc > 0:
		return b.Min, true
	case ps > 0 && pc < 0:
		return 0, false
	default:
		return fs, true
	}
}

// checkRecord validates rec against the sweep bounds and the current clock.
func checkRecord(rec checkpoint.Record, b Bounds, now uint64) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Field < b.Min || rec.Field > b.Max+b.Inc {
		return checkpoint.Inconsistent(fmt.Sprintf("field %d outside [%d, %d]", rec.Field, b.Min, b.Max+b.Inc), &rec)
	}
	if !b.OnGrid(rec.Field) {
		return checkpoint.Inconsistent(fmt.Sprintf("field %d off the %d uT grid anchored at %d", rec.Field, b.Inc, b.Min), &rec)
	}
	if rec.StepCounter < now {
		return checkpoint.Inconsistent(fmt.Sprintf("step counter %d behind clock %d", rec.StepCounter, now), &rec)
	}
	return nil
}
