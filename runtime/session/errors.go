package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/deskpilot/deskpilot/runtime/queue"
)

// ErrAlreadyRunning is returned by Run while another Run is in progress.
var ErrAlreadyRunning = errors.New("session: audio loop already running")

// errQuit ends the session normally. It is returned by the text pipeline when
// the user asks to quit and never escapes Run.
var errQuit = errors.New("session: quit requested")

// SupervisionError aggregates every pipeline fault of a failed session.
type SupervisionError struct {
	Faults []error
}

func (e *SupervisionError) Error() string {
	msgs := make([]string, len(e.Faults))
	for i, f := range e.Faults {
		msgs[i] = f.Error()
	}
	return "session failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the faults to errors.Is and errors.As.
func (e *SupervisionError) Unwrap() []error {
	return e.Faults
}

// faultCollector records pipeline faults. Cancellation and quit are not faults.
type faultCollector struct {
	mu     sync.Mutex
	faults []error
}

func (c *faultCollector) add(err error) {
	if !isFault(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = append(c.faults, err)
}

// err returns nil when no fault was recorded.
func (c *faultCollector) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.faults) == 0 {
		return nil
	}
	return &SupervisionError{Faults: append([]error(nil), c.faults...)}
}

func isFault(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, errQuit),
		errors.Is(err, context.Canceled),
		errors.Is(err, queue.ErrClosed):
		return false
	}
	return true
}
