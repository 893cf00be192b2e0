package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for tool operations.
var (
	// ErrToolNotFound is returned when a requested tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameRequired is returned when registering a tool without a name.
	ErrToolNameRequired = errors.New("tool name is required")

	// ErrToolDescriptionRequired is returned when registering a tool without a description.
	ErrToolDescriptionRequired = errors.New("tool description is required")

	// ErrInputSchemaRequired is returned when registering a tool without an input schema.
	ErrInputSchemaRequired = errors.New("input schema is required")

	// ErrToolNotBound is returned when a described tool has no implementation.
	ErrToolNotBound = errors.New("tool has no implementation")
)

// UnknownToolError is returned by Registry.Lookup for names that were never
// registered. It matches ErrToolNotFound with errors.Is.
type UnknownToolError struct {
	Name string
}

// Error returns the message reported back to the model.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown function: %s", e.Name)
}

// Is reports whether target is ErrToolNotFound.
func (e *UnknownToolError) Is(target error) bool {
	return target == ErrToolNotFound
}
