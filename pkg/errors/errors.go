// Package errors provides the structured error type used at deskpilot component
// boundaries (session connect, device open, capture pipeline setup).
//
// Usage:
//
//	err := errors.New(errors.ComponentAudio, "OpenMicrophone", someErr)
//	err = err.WithDetails(map[string]any{"sample_rate": 16000})
package errors

import (
	stderrors "errors"
	"fmt"
)

// Component names used across the module.
const (
	ComponentSession = "session"
	ComponentGemini  = "gemini"
	ComponentAudio   = "audio"
	ComponentCapture = "capture"
	ComponentTools   = "tools"
	ComponentConfig  = "config"
)

// ContextualError records which component failed, what it was doing and why.
type ContextualError struct {
	// Component identifies the package that produced the error.
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or websocket close code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// ComponentOf returns the component of the outermost ContextualError in err's
// chain, or "" when there is none.
func ComponentOf(err error) string {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.Component
	}
	return ""
}
