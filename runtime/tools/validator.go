package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator validates tool arguments against compiled input schemas.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateArgs validates tool arguments against the input schema. A
// descriptor without a schema accepts any arguments.
func (sv *SchemaValidator) ValidateArgs(descriptor *ToolDescriptor, args map[string]any) error {
	if len(descriptor.InputSchema) == 0 {
		return nil
	}

	schema, err := sv.getSchema(string(descriptor.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", descriptor.Name, err)
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", descriptor.Name, err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &ValidationError{
			Type:   "args_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("argument validation failed: %v", errs),
		}
	}

	return nil
}

// CheckSchema compiles the descriptor's input schema, reporting syntax errors
// at registration time instead of at the first call.
func (sv *SchemaValidator) CheckSchema(descriptor *ToolDescriptor) error {
	if len(descriptor.InputSchema) == 0 {
		return nil
	}
	if !json.Valid(descriptor.InputSchema) {
		return &ValidationError{Type: "descriptor_invalid", Tool: descriptor.Name, Detail: "input_schema is not valid JSON"}
	}
	if _, err := sv.getSchema(string(descriptor.InputSchema)); err != nil {
		return &ValidationError{Type: "descriptor_invalid", Tool: descriptor.Name, Detail: err.Error()}
	}
	return nil
}

// getSchema retrieves or compiles a JSON schema
func (sv *SchemaValidator) getSchema(schemaJSON string) (*gojsonschema.Schema, error) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if schema, exists := sv.cache[schemaJSON]; exists {
		return schema, nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}

	sv.cache[schemaJSON] = schema
	return schema, nil
}
