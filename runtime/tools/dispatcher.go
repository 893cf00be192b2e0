package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/types"
)

const tracerName = "github.com/deskpilot/deskpilot/runtime/tools"

// Call outcome labels reported to the Recorder.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInvalid = "invalid"
	StatusUnknown = "unknown"
)

// Recorder receives one observation per dispatched call.
type Recorder interface {
	ObserveToolCall(tool, status string, duration time.Duration)
}

// Dispatcher executes batches of model tool calls against a Registry.
type Dispatcher struct {
	registry *Registry
	tracer   trace.Tracer
	recorder Recorder
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves names against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch executes calls in order and returns exactly one result per call,
// in call order. A failing call never aborts the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.Execute(ctx, call))
	}
	return results
}

// Execute runs a single call and shapes its outcome.
func (d *Dispatcher) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	ctx = logger.WithToolCall(ctx, call.Name, call.ID)
	ctx, span := d.tracer.Start(ctx, "tool."+call.Name, trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	logger.ToolCall(ctx, call.Name, call.ID, call.Args)
	start := time.Now()

	value, status, err := d.run(ctx, call)
	var result types.ToolResult
	if err == nil {
		var shaped string
		shaped, err = shapeResult(value)
		if err != nil {
			status = StatusError
		} else {
			result = types.NewToolResult(call, shaped)
		}
	}
	if err != nil {
		result = types.NewToolError(call, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	elapsed := time.Since(start)
	span.SetAttributes(attribute.String("tool.status", status))
	if d.recorder != nil {
		d.recorder.ObserveToolCall(call.Name, status, elapsed)
	}
	logger.ToolResult(ctx, call.Name, call.ID, elapsed.Milliseconds(), result.ErrorMessage())
	return result
}

// run resolves, validates and invokes the tool, returning the raw value and a status label.
func (d *Dispatcher) run(ctx context.Context, call types.ToolCall) (any, string, error) {
	tool, desc, err := d.registry.Lookup(call.Name)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return nil, StatusUnknown, err
		}
		return nil, StatusError, err
	}

	if err := d.registry.validator.ValidateArgs(desc, call.Args); err != nil {
		return nil, StatusInvalid, err
	}

	value, err := invoke(ctx, tool, call.Args)
	if err != nil {
		return nil, StatusError, err
	}
	return value, StatusSuccess, nil
}

// invoke runs the tool on its own goroutine so that a stuck tool cannot hold
// the caller past session shutdown. No deadline is added here; a call runs
// until it returns or ctx is cancelled. Panics are converted to errors.
func invoke(ctx context.Context, tool Tool, args map[string]any) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", tool.Name(), r)}
			}
		}()
		if args == nil {
			args = map[string]any{}
		}
		v, err := tool.Call(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s: %w", tool.Name(), ctx.Err())
	}
}

// shapeResult renders a tool return value as the string carried under "result".
// Maps, slices and structs are JSON-encoded; strings pass through; anything
// else uses its default formatting.
func shapeResult(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.RawMessage:
		return string(val), nil
	case fmt.Stringer:
		if !isStructured(reflect.ValueOf(v)) {
			return val.String(), nil
		}
	}

	if isStructured(reflect.ValueOf(v)) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool result: %w", err)
		}
		return string(data), nil
	}
	return fmt.Sprint(v), nil
}

func isStructured(rv reflect.Value) bool {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}
