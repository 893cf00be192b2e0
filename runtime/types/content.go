package types

// Role constants for conversation turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is a single piece of turn content. Only text parts are sent by the client.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is one conversation turn sent with client content.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText builds a single-part user turn.
func UserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{{Text: text}}}
}
