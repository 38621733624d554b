package report

import "errors"

// ErrNotFound is returned when no report exists for the given ID.
var ErrNotFound = errors.New("report not found")

// ErrStaleVersion is the optimistic-concurrency conflict: the write was based
// on an outdated version of the report. Callers must re-read current state
// before retrying; the engine never retries operator transitions on their behalf.
var ErrStaleVersion = errors.New("stale transition: report was modified concurrently")

// ErrInvalidTransition is returned for a transition that is not legal from the
// report's current status. It is always rejected, never silently corrected.
var ErrInvalidTransition = errors.New("invalid transition for current report status")

// ErrValidation marks a malformed submission or request payload.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }
