package core

import (
	"errors"
	"fmt"
)

// Phase names the part of a step that failed.
type Phase string

// Step phases.
const (
	PhaseValidate  Phase = "validate"
	PhasePreflight Phase = "preflight"
	PhaseCommit    Phase = "commit"
	PhaseExecute   Phase = "execute"
)

// ErrFilterNotFound is returned by registry lookups for unknown filters.
var ErrFilterNotFound = errors.New("core: filter not found")

// StepError reports the failing step of a pipeline.
type StepError struct {
	Index  int
	Filter string
	Phase  Phase
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed during %s: %v", e.Index, e.Filter, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
