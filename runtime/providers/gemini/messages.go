package gemini

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/deskpilot/deskpilot/runtime/types"
)

// ServerMessage represents a message from the Gemini server (BidiGenerateContentServerMessage)
type ServerMessage struct {
	SetupComplete           *SetupComplete           `json:"setupComplete,omitempty"`
	ServerContent           *ServerContent           `json:"serverContent,omitempty"`
	ToolCall                *ToolCallMsg             `json:"toolCall,omitempty"`
	ToolCallCancellation    *ToolCallCancellation    `json:"toolCallCancellation,omitempty"`
	UsageMetadata           *UsageMetadata           `json:"usageMetadata,omitempty"`
	GoAway                  *GoAway                  `json:"goAway,omitempty"`
	SessionResumptionUpdate *SessionResumptionUpdate `json:"sessionResumptionUpdate,omitempty"`
}

// SetupComplete indicates setup is complete (empty object)
type SetupComplete struct{}

// ServerContent represents the server content (BidiGenerateContentServerContent)
type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription represents audio transcription
type Transcription struct {
	Text string `json:"text,omitempty"`
}

// ModelTurn represents a model response turn
type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

// Part represents a content part (text or inline data)
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData represents inline media data
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64
}

// ToolCallMsg carries one or more function calls requested by the model
type ToolCallMsg struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// FunctionCall represents a function call
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolCallCancellation lists call ids the model no longer needs answered
type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

// UsageMetadata contains token usage information
type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}

// GoAway announces that the server will close the connection soon
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// SessionResumptionUpdate carries a handle that can resume the session
type SessionResumptionUpdate struct {
	NewHandle string `json:"newHandle,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

// toEvent converts the content-bearing parts of a server message into a
// response event. It returns nil when the message carries nothing for the caller.
func (m *ServerMessage) toEvent() (*types.ResponseEvent, error) {
	event := &types.ResponseEvent{}
	empty := true

	if sc := m.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.Text != "" {
					event.Text += part.Text
					empty = false
				}
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MimeType, "audio/") {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("decode inline audio: %w", err)
				}
				event.Audio = append(event.Audio, pcm...)
				empty = false
			}
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			event.InputTranscript = sc.InputTranscription.Text
			empty = false
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			event.OutputTranscript = sc.OutputTranscription.Text
			empty = false
		}
		if sc.Interrupted {
			event.Interrupted = true
			empty = false
		}
	}

	if m.ToolCall != nil && len(m.ToolCall.FunctionCalls) > 0 {
		event.ToolCalls = make([]types.ToolCall, 0, len(m.ToolCall.FunctionCalls))
		for _, fc := range m.ToolCall.FunctionCalls {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			event.ToolCalls = append(event.ToolCalls, types.ToolCall{ID: fc.ID, Name: fc.Name, Args: args})
		}
		empty = false
	}

	if u := m.UsageMetadata; u != nil {
		event.Usage = &types.Usage{
			PromptTokens:   u.PromptTokenCount,
			ResponseTokens: u.ResponseTokenCount,
			TotalTokens:    u.TotalTokenCount,
		}
		empty = false
	}

	if empty {
		return nil, nil
	}
	return event, nil
}

// turnComplete reports whether the message closes the current model turn.
func (m *ServerMessage) turnComplete() bool {
	return m.ServerContent != nil && m.ServerContent.TurnComplete
}

// buildRealtimeInputMessage wraps a media chunk as realtime input
func buildRealtimeInputMessage(chunk types.MediaChunk) map[string]any {
	return map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"mime_type": chunk.MIMEType,
					"data":      base64.StdEncoding.EncodeToString(chunk.Data),
				},
			},
		},
	}
}

// buildClientContentMessage builds a client_content message from structured turns
func buildClientContentMessage(turns []types.Content, turnComplete bool) map[string]any {
	wireTurns := make([]map[string]any, 0, len(turns))
	for _, turn := range turns {
		parts := make([]map[string]any, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, map[string]any{"text": p.Text})
		}
		role := turn.Role
		if role == "" {
			role = types.RoleUser
		}
		wireTurns = append(wireTurns, map[string]any{
			"role":  role,
			"parts": parts,
		})
	}

	return map[string]any{
		"client_content": map[string]any{
			"turns":         wireTurns,
			"turn_complete": turnComplete,
		},
	}
}

// buildToolResponseMessage answers function calls by id
// (toolResponse.functionResponses[].{id, name, response}).
func buildToolResponseMessage(results []types.ToolResult) map[string]any {
	functionResponses := make([]map[string]any, len(results))
	for i, r := range results {
		functionResponses[i] = map[string]any{
			"id":       r.ID,
			"name":     r.Name,
			"response": r.Response,
		}
	}
	return map[string]any{
		"toolResponse": map[string]any{
			"functionResponses": functionResponses,
		},
	}
}
