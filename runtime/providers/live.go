// Package providers defines the live session transport used by the agent and
// the configuration it is opened with.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deskpilot/deskpilot/runtime/types"
)

// Live session defaults.
const (
	DefaultModel                   = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice                   = "Charon"
	ModalityAudio                  = "AUDIO"
	ModalityText                   = "TEXT"
	MediaResolutionMedium          = "MEDIA_RESOLUTION_MEDIUM"
	TurnIncludesAllInput           = "TURN_INCLUDES_ALL_INPUT"
	DefaultCompressionTriggerToken = 32000
	DefaultCompressionTargetToken  = 32000
)

// ErrSessionClosed is returned by LiveSession methods after Close.
var ErrSessionClosed = errors.New("live session closed")

// FunctionDeclaration describes one callable tool to the model.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// LiveConfig is the fixed configuration a live session is opened with.
type LiveConfig struct {
	Model              string
	Voice              string
	ResponseModalities []string
	MediaResolution    string
	TurnCoverage       string

	// Context-window compression: once the context reaches TriggerTokens it is
	// reduced with a sliding window down to TargetTokens.
	CompressionTriggerTokens int
	CompressionTargetTokens  int

	SystemInstruction string
	Tools             []FunctionDeclaration
	GoogleSearch      bool

	InputTranscription  bool
	OutputTranscription bool
}

// DefaultLiveConfig returns the configuration used by the desktop agent.
func DefaultLiveConfig() *LiveConfig {
	return &LiveConfig{
		Model:                    DefaultModel,
		Voice:                    DefaultVoice,
		ResponseModalities:       []string{ModalityAudio},
		MediaResolution:          MediaResolutionMedium,
		TurnCoverage:             TurnIncludesAllInput,
		CompressionTriggerTokens: DefaultCompressionTriggerToken,
		CompressionTargetTokens:  DefaultCompressionTargetToken,
		GoogleSearch:             true,
	}
}

// Validate checks the configuration before connecting.
func (c *LiveConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("live config: model is required")
	}
	if len(c.ResponseModalities) == 0 {
		return fmt.Errorf("live config: at least one response modality is required")
	}
	if c.CompressionTargetTokens > c.CompressionTriggerTokens {
		return fmt.Errorf("live config: compression target %d exceeds trigger %d",
			c.CompressionTargetTokens, c.CompressionTriggerTokens)
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, fd := range c.Tools {
		if fd.Name == "" {
			return fmt.Errorf("live config: tool declaration without a name")
		}
		if seen[fd.Name] {
			return fmt.Errorf("live config: duplicate tool declaration %q", fd.Name)
		}
		seen[fd.Name] = true
	}
	return nil
}

// Connector opens live sessions.
type Connector interface {
	Connect(ctx context.Context, cfg *LiveConfig) (LiveSession, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, cfg *LiveConfig) (LiveSession, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, cfg *LiveConfig) (LiveSession, error) {
	return f(ctx, cfg)
}

// LiveSession is a bidirectional streaming session with a conversational model.
//
// Example usage:
//
//	session, err := connector.Connect(ctx, providers.DefaultLiveConfig())
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	for {
//	    turn := session.Receive(ctx)
//	    for {
//	        event, err := turn.Next(ctx)
//	        if errors.Is(err, io.EOF) {
//	            break
//	        }
//	        if err != nil {
//	            return err
//	        }
//	        handle(event)
//	    }
//	}
type LiveSession interface {
	// SendRealtimeInput streams one media chunk (microphone audio or a video frame).
	// It is safe to call from multiple goroutines.
	SendRealtimeInput(ctx context.Context, chunk types.MediaChunk) error

	// SendClientContent sends structured turns. With turnComplete set the model
	// starts generating a response.
	SendClientContent(ctx context.Context, turns []types.Content, turnComplete bool) error

	// Receive returns the event sequence of the next model turn.
	Receive(ctx context.Context) Turn

	// SendToolResponse answers a batch of tool calls, correlated by call id.
	SendToolResponse(ctx context.Context, results []types.ToolResult) error

	// Close ends the session. It is safe to call more than once.
	Close() error
}

// Turn is a lazy, finite sequence of response events. Next returns io.EOF once
// the model has finished the turn. Any other error is a transport failure.
type Turn interface {
	Next(ctx context.Context) (*types.ResponseEvent, error)
}
