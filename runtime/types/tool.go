package types

// Response keys of a tool result.
const (
	ResultKey = "result"
	ErrorKey  = "error"
)

// ToolCall is a single function call issued by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult answers exactly one ToolCall. Response holds either
// {"result": <string>} or {"error": <string>}.
type ToolResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// NewToolResult builds a successful result for the given call.
func NewToolResult(call ToolCall, result string) ToolResult {
	return ToolResult{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{ResultKey: result},
	}
}

// NewToolError builds a failed result for the given call.
func NewToolError(call ToolCall, msg string) ToolResult {
	return ToolResult{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{ErrorKey: msg},
	}
}

// IsError reports whether the result carries an error.
func (r ToolResult) IsError() bool {
	_, ok := r.Response[ErrorKey]
	return ok
}

// ErrorMessage returns the error text, or "" for a successful result.
func (r ToolResult) ErrorMessage() string {
	msg, _ := r.Response[ErrorKey].(string)
	return msg
}
