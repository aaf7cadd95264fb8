package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown or evicted sessions.
	ErrNotFound = errors.New("session not found")

	// ErrAgentTimeout is returned when an agent exceeds its time budget.
	ErrAgentTimeout = errors.New("agent timed out")

	// ErrFanOutTimeout marks extraction agents still outstanding when the barrier fired.
	ErrFanOutTimeout = errors.New("fan-out deadline reached")

	// ErrCancelled marks agents stopped because their session was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidTransition is returned when a status change would regress.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownAgent is returned for agent ids outside the fixed role set.
	ErrUnknownAgent = errors.New("unknown agent")
)

// ValidationError reports bad user input. It never reaches the orchestrator.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SessionFatalError is a failure that ends the whole session.
// Only the search and synthesis stages produce it.
type SessionFatalError struct {
	Stage AgentID
	Err   error
}

func (e *SessionFatalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *SessionFatalError) Unwrap() error {
	return e.Err
}
