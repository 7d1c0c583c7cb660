package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a patient (or agent) lookup misses. It is
	// always recoverable by the caller and never crashes a processing unit.
	ErrNotFound = errors.New("not found")

	// ErrBusClosed signals normal end-of-run termination of the bus. It is a
	// shutdown signal rather than a failure; subscriber loops exit cleanly
	// when they observe it.
	ErrBusClosed = errors.New("bus closed")

	// ErrDecisionTimeout is returned when a decider exceeds its per-call
	// bound. The affected cycle is skipped and counted; the runtime survives.
	ErrDecisionTimeout = errors.New("decision function timed out")
)

// SetupError marks an unrecoverable initialization failure (store or bus
// cannot be brought up). It is the only error class fatal to a whole run:
// the clock transitions to Failed before any tick executes.
type SetupError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed at %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *SetupError) Unwrap() error { return e.Err }
