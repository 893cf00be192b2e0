// Package logger provides structured logging with automatic secret redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Live session lifecycle logging (connect, turn boundaries, shutdown)
//   - Tool call and tool result logging
//   - Automatic API key redaction in URLs and payloads
//   - Contextual logging with session, turn and pipeline fields
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different log levels.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	mu     sync.Mutex
	output io.Writer = os.Stderr
)

func init() {
	DefaultLogger = newLogger(output, levelFromEnv(os.Getenv("LOG_LEVEL")))
}

// levelFromEnv maps a LOG_LEVEL value to a slog level. Unknown values fall back to info.
func levelFromEnv(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(NewContextHandler(handler))
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = newLogger(output, level)
}

// SetOutput redirects log output, keeping the given level. Intended for tests
// and for the CLI when the terminal is shared with the text prompt.
func SetOutput(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	DefaultLogger = newLogger(output, level)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context fields attached.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context fields attached.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or degraded operation.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context fields attached.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context fields attached.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// SessionEvent logs a live session lifecycle event (connected, closed, go_away, ...).
func SessionEvent(ctx context.Context, event, model string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"event", event,
		"model", model,
	)
	allAttrs = append(allAttrs, attrs...)
	InfoContext(ctx, "🎙️ Live session", allAttrs...)
}

// ToolCall logs a tool invocation requested by the model.
func ToolCall(ctx context.Context, name, id string, args map[string]any) {
	DefaultLogger.InfoContext(ctx, "🔧 Tool call",
		"tool", name,
		"call_id", id,
		"args", RedactSensitiveData(formatArgs(args)),
	)
}

// ToolResult logs the outcome of a tool invocation. A non-empty errMsg marks a failed call.
func ToolResult(ctx context.Context, name, id string, durationMs int64, errMsg string) {
	if errMsg != "" {
		DefaultLogger.WarnContext(ctx, "❌ Tool failed",
			"tool", name,
			"call_id", id,
			"duration_ms", durationMs,
			"error", errMsg,
		)
		return
	}
	DefaultLogger.InfoContext(ctx, "✅ Tool result",
		"tool", name,
		"call_id", id,
		"duration_ms", durationMs,
	)
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range args {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(truncate(slog.AnyValue(v).String(), maxArgLen))
	}
	b.WriteByte('}')
	return b.String()
}

const maxArgLen = 120

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
		// must stay last: query-string keys keep their parameter name
		regexp.MustCompile(`([?&](?:key|apiKey|api_key)=)[^&\s"]+`),
	}
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
//
// Supported patterns:
//   - Google keys (AIza...): shows the first 4 chars
//   - Bearer tokens: shows only "Bearer [REDACTED]"
//   - key=, apiKey= and api_key= query parameters: the value is replaced
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactSensitiveData(input string) string {
	result := input

	for i, pattern := range apiKeyPatterns {
		if i == len(apiKeyPatterns)-1 {
			result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
			continue
		}
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}
