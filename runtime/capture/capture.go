// Package capture grabs camera and screen frames and turns them into JPEG
// media chunks for the live session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deskpilot/deskpilot/runtime/media"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// ErrEndOfStream is returned by Grab once the source has no more frames.
// It ends the capture pipeline without failing the session.
var ErrEndOfStream = errors.New("capture: end of stream")

// Mode selects which video source, if any, feeds the session.
type Mode string

// Supported capture modes.
const (
	ModeCamera Mode = "camera"
	ModeScreen Mode = "screen"
	ModeNone   Mode = "none"
)

// DefaultMode is used when no mode is configured.
const DefaultMode = ModeScreen

// Modes lists the accepted mode names.
func Modes() []string {
	return []string{string(ModeCamera), string(ModeScreen), string(ModeNone)}
}

// ParseMode validates a mode name. The empty string selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DefaultMode, nil
	case ModeCamera, ModeScreen, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected one of %s)", s, strings.Join(Modes(), ", "))
	}
}

// Grabber produces one encoded frame per Grab call. Grab may block on the
// device; callers run it off the coordination goroutine.
type Grabber interface {
	Grab(ctx context.Context) (types.MediaChunk, error)
	Close() error
}

// Config configures a grabber.
type Config struct {
	// Device is the camera device, e.g. /dev/video0. Empty selects the default camera.
	Device string

	// Frame bounds the encoded frames.
	Frame media.FrameConfig
}

// DefaultConfig returns the default grabber configuration.
func DefaultConfig() Config {
	return Config{Frame: media.DefaultFrameConfig()}
}

// New opens the grabber for mode. ModeNone has no grabber and returns nil.
func New(mode Mode, cfg Config) (Grabber, error) {
	switch mode {
	case ModeCamera:
		return NewCamera(cfg)
	case ModeScreen:
		return NewScreen(cfg)
	case ModeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid mode %q", mode)
	}
}
