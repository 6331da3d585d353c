package core

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound indicates an operation referenced a session id that is
// not (or no longer) present in the store.
var ErrSessionNotFound = errors.New("session not found")

// UnknownAgentError indicates registry misuse: completing or querying an
// execution id that is not in the active set. Double completion and
// completion of a never-begun id are programming errors in pipeline
// bookkeeping and are always surfaced, never swallowed.
type UnknownAgentError struct {
	AgentID string
}

// Error implements the error interface.
func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent execution: %s", e.AgentID)
}

// ValidationError reports malformed caller input. No pipeline or registry
// state is created when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// StageError wraps a failure of one pipeline stage together with the stage
// identity and its failure policy. Critical stage errors abort the run;
// best-effort stage errors degrade the response.
type StageError struct {
	Stage  AgentType
	Policy StagePolicy
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StageError) Unwrap() error { return e.Err }

// Critical reports whether the failed stage was on the critical path.
func (e *StageError) Critical() bool { return e.Policy == PolicyCritical }
