// Package tools provides the tool calling infrastructure for the live agent.
//
// This package implements:
//   - A typed registry binding tool names to implementations
//   - K8s-style YAML tool manifests with JSON Schema input validation
//   - A Dispatcher that runs a batch of model tool calls and shapes each
//     outcome into a {"result": ...} or {"error": ...} response
//
// Unknown tool names are a first-class error (UnknownToolError), never a panic.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Manifest identifiers for tool configuration files.
const (
	APIVersion = "deskpilot/v1alpha1"
	KindTool   = "Tool"
)

// ToolConfig represents a K8s-style tool configuration manifest
type ToolConfig struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       ToolDescriptor    `json:"spec" yaml:"spec"`
}

// ToolDescriptor represents a normalized tool definition
type ToolDescriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Category    string          `json:"category,omitempty" yaml:"category,omitempty"`
	InputSchema json.RawMessage `json:"input_schema" yaml:"input_schema"` // JSON Schema Draft-07
}

// Tool is a callable bound to a descriptor. Args have already been validated
// against the descriptor's input schema when Call runs.
type Tool interface {
	Name() string
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	ToolName string
	Fn       func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunc creates a Tool from a function.
func NewFunc(name string, fn func(ctx context.Context, args map[string]any) (any, error)) *Func {
	return &Func{ToolName: name, Fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string { return f.ToolName }

// Call implements Tool.
func (f *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}

// ValidationError represents a tool validation failure
type ValidationError struct {
	Type   string `json:"type"` // "args_invalid" | "descriptor_invalid"
	Tool   string `json:"tool"`
	Detail string `json:"detail"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s validation error (%s): %s", e.Tool, e.Type, e.Detail)
}
