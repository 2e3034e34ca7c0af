package daycycle

import (
	"errors"
	"fmt"

	"marketsimulator/internal/dao/daycontrol"
)

var (
	ErrAlreadyActive = errors.New("already active")
	ErrNotActive     = errors.New("not active")
	ErrAlreadyPaused = errors.New("already paused")
	ErrNotPaused     = errors.New("not paused")

	ErrNotInitialized   = daycontrol.ErrNotInitialized
	ErrConcurrentUpdate = daycontrol.ErrVersionConflict

	ErrSchedulerNotArmed = errors.New("scheduler not armed")
)

// ResetConfirmation is the token an administrator must send to reset.
const ResetConfirmation = "RESET"

// DaySimulationError is an illegal state transition. Kind is one of the
// sentinel errors above and is what errors.Is matches against.
type DaySimulationError struct {
	Kind    error
	Message string
}

func (e *DaySimulationError) Error() string {
	return e.Message
}

func (e *DaySimulationError) Unwrap() error {
	return e.Kind
}

func transitionError(kind error, format string, args ...interface{}) error {
	return &DaySimulationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError is malformed administrator input, rejected before any
// state is read.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
