package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for run termination.
var (
	ErrMalformedAction = errors.New("agent: malformed action")
	ErrPortUnavailable = errors.New("agent: reasoning port unavailable")
	ErrIterationLimit  = errors.New("agent: iteration limit reached")
	ErrLoopDetected    = errors.New("agent: loop detected")
)

// MalformedActionError reports model output that is neither a tool call
// nor a final answer.
type MalformedActionError struct {
	Output string
	Reason string
}

func (e *MalformedActionError) Error() string {
	if e.Reason == "" {
		return ErrMalformedAction.Error()
	}
	return fmt.Sprintf("%s: %s", ErrMalformedAction, e.Reason)
}

// Is matches ErrMalformedAction.
func (e *MalformedActionError) Is(target error) bool {
	return target == ErrMalformedAction
}

// IterationLimitError records that a run hit its iteration cap. It is
// attached to Result.Degraded, never returned.
type IterationLimitError struct {
	Max             int
	LastObservation string
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("%s after %d iterations", ErrIterationLimit, e.Max)
}

// Is matches ErrIterationLimit.
func (e *IterationLimitError) Is(target error) bool {
	return target == ErrIterationLimit
}

// RunError is returned when a run fails. Err is one of a
// *MalformedActionError, a *tool.DispatchError, an error wrapping
// ErrPortUnavailable, or a context error.
type RunError struct {
	RunID     string
	Stage     string
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("agent run %s: %s (iteration %d): %v", e.RunID, e.Stage, e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
