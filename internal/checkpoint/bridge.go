// Package checkpoint persists and restores the minimal state needed to
// resume a field sweep: the step counter, the active polarity and the
// quantized field of the next field point, plus an optional spin
// configuration.
//
// Three stores implement [Bridge]:
//
//   - [FileStore]: one JSON document on disk, written atomically
//   - [SQLiteStore]: keyed rows in a SQLite database
//   - [MemoryStore]: in-process, for tests and dry runs
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/magsim/internal/sim"
)

// Record is the persisted resume state.
type Record struct {
	StepCounter uint64       `json:"step_counter"`
	Polarity    int64        `json:"polarity"`
	Field       int64        `json:"field"`
	Resume      bool         `json:"resume"`
	Spins       [][3]float64 `json:"spins,omitempty"`
	SavedAt     time.Time    `json:"saved_at"`
}

// PolarityDone marks a sweep whose positive branch has completed.
const PolarityDone int64 = 3

// Bridge is the checkpoint interface consumed by the sweep controller
// (load) and the owning program (save).
type Bridge interface {
	// LoadResumeState returns the stored record, or ok=false when none exists.
	LoadResumeState(ctx context.Context) (rec Record, ok bool, err error)
	SaveState(ctx context.Context, rec Record) error
}

// InconsistentError describes why a record cannot be resumed from.
type InconsistentError struct {
	Reason string
	Record *Record
}

func (e *InconsistentError) Error() string {
	if e.Record != nil {
		return fmt.Sprintf("%v: %s (polarity=%d field=%d step=%d)",
			sim.ErrCheckpointInconsistent, e.Reason, e.Record.Polarity, e.Record.Field, e.Record.StepCounter)
	}
	return fmt.Sprintf("%v: %s", sim.ErrCheckpointInconsistent, e.Reason)
}

func (e *InconsistentError) Unwrap() error {
	return sim.ErrCheckpointInconsistent
}

// Inconsistent builds an InconsistentError for rec.
func Inconsistent(reason string, rec *Record) error {
	return &InconsistentError{Reason: reason, Record: rec}
}

// Validate checks the bound-independent structure of a record.
func (r Record) Validate() error {
	switch r.Polarity {
	case -1, 1, PolarityDone:
	default:
		return Inconsistent(fmt.Sprintf("polarity %d not in {-1, 1, %d}", r.Polarity, PolarityDone), &r)
	}
	return nil
}

// Resumable rejects a record its writer did not mark as a resume point.
func (r Record) Resumable() error {
	if !r.Resume {
		return Inconsistent("record is not marked resumable", &r)
	}
	return nil
}

// Snapshot builds a record from the run state.
func Snapshot(state *sim.RunState, spins [][3]float64) Record {
	return Record{
		StepCounter: state.Time,
		Polarity:    state.Polarity,
		Field:       state.Field,
		Resume:      true,
		Spins:       spins,
		SavedAt:     time.Now().UTC(),
	}
}
