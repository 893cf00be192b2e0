package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// Values stored under these keys are added to every record logged with the context.
const (
	// ContextKeySessionID identifies the live session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyTurnID identifies the current model turn.
	ContextKeyTurnID contextKey = "turn_id"

	// ContextKeyPipeline names the orchestrator pipeline (mic, video, receive, ...).
	ContextKeyPipeline contextKey = "pipeline"

	// ContextKeyToolCallID is the model-assigned id of a tool call.
	ContextKeyToolCallID contextKey = "tool_call_id"

	// ContextKeyToolName is the name of the tool being executed.
	ContextKeyToolName contextKey = "tool_name"

	// ContextKeyModel identifies the model serving the session.
	ContextKeyModel contextKey = "model"
)

// allContextKeys lists all context keys that should be extracted for logging.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyTurnID,
	ContextKeyPipeline,
	ContextKeyToolCallID,
	ContextKeyToolName,
	ContextKeyModel,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithTurnID returns a new context with the turn ID set.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, ContextKeyTurnID, turnID)
}

// WithPipeline returns a new context with the pipeline name set.
func WithPipeline(ctx context.Context, pipeline string) context.Context {
	return context.WithValue(ctx, ContextKeyPipeline, pipeline)
}

// WithToolCall returns a new context carrying the tool name and call id.
func WithToolCall(ctx context.Context, name, callID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyToolName, name)
	return context.WithValue(ctx, ContextKeyToolCallID, callID)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	SessionID  string
	TurnID     string
	Pipeline   string
	ToolCallID string
	ToolName   string
	Model      string
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	return LoggingFields{
		SessionID:  stringValue(ctx, ContextKeySessionID),
		TurnID:     stringValue(ctx, ContextKeyTurnID),
		Pipeline:   stringValue(ctx, ContextKeyPipeline),
		ToolCallID: stringValue(ctx, ContextKeyToolCallID),
		ToolName:   stringValue(ctx, ContextKeyToolName),
		Model:      stringValue(ctx, ContextKeyModel),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}
