package types

// Usage reports token accounting sent by the model.
type Usage struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// ResponseEvent is one event received from the live session within a turn.
// Audio, Text and ToolCalls are mutually exclusive in practice; the receive
// loop checks them in that order.
type ResponseEvent struct {
	// Audio is raw 24 kHz PCM to be played back.
	Audio []byte

	// Text is a streamed fragment of model text.
	Text string

	// ToolCalls is a batch of function calls to dispatch.
	ToolCalls []ToolCall

	// InputTranscript and OutputTranscript carry transcription fragments when enabled.
	InputTranscript  string
	OutputTranscript string

	// Interrupted is set when the user barged in on model speech.
	Interrupted bool

	// Usage is set on usage metadata messages.
	Usage *Usage
}

// HasAudio reports whether the event carries audio payload.
func (e *ResponseEvent) HasAudio() bool {
	return len(e.Audio) > 0
}
