package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// Prompt is printed before every line of text input.
const Prompt = "message > "

// emptyInput replaces an empty line so the model still gets a turn.
const emptyInput = "."

// TextInput supplies lines typed by the user. ReadLine returns io.EOF when the
// input is exhausted.
type TextInput interface {
	ReadLine(ctx context.Context) (string, error)
}

// LineReader reads newline-terminated lines from an io.Reader such as stdin.
type LineReader struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

// NewLineReader creates a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(r)}
}

// ReadLine blocks until a full line is available. ctx is not observed; the
// text pipeline offloads the call.
func (r *LineReader) ReadLine(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// isQuit reports whether line is the quit sentinel.
func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit":
		return true
	}
	return false
}

// runTextInput forwards typed lines as user turns until the quit sentinel or
// end of input, both of which end the session normally.
func (l *AudioLoop) runTextInput(ctx context.Context, sess providers.LiveSession) error {
	for {
		l.out.print(Prompt)
		line, err := offload(ctx, func() (string, error) {
			return l.input.ReadLine(ctx)
		})
		if errors.Is(err, io.EOF) {
			return errQuit
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if isQuit(line) {
			return errQuit
		}
		if strings.TrimSpace(line) == "" {
			line = emptyInput
		}
		if err := sess.SendClientContent(ctx, []types.Content{types.UserText(line)}, true); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	}
}
