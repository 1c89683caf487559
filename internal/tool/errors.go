package tool

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrUnknownTool is an alias of ErrToolNotFound used by dispatch.
	ErrUnknownTool = ErrToolNotFound

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolPanic marks an execution that panicked.
	ErrToolPanic = errors.New("tool panicked")
)

// DispatchError reports a call to a tool that is not registered.
// It is surfaced to the caller, unlike execution failures.
type DispatchError struct {
	Name string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %v", e.Name, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ExecutionError records a failure raised by a tool while running.
// The registry absorbs it into an observation and never returns it.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
