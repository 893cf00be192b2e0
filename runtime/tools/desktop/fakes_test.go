package desktop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type fakeHID struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (f *fakeHID) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.fail
}

func (f *fakeHID) Move(x, y int) error { return f.record("move %d %d", x, y) }
func (f *fakeHID) Click(button string, double bool) error {
	return f.record("click %s %t", button, double)
}
func (f *fakeHID) Drag(sx, sy, ex, ey int) error {
	return f.record("drag %d %d %d %d", sx, sy, ex, ey)
}
func (f *fakeHID) Scroll(amount int) error { return f.record("scroll %d", amount) }
func (f *fakeHID) Type(_ context.Context, text string, interval time.Duration) error {
	return f.record("type %q %s", text, interval)
}
func (f *fakeHID) Hotkey(keys []string) error {
	return f.record("hotkey %s", strings.Join(keys, " "))
}
func (f *fakeHID) ActivateWindow(title string) error { return f.record("activate %s", title) }

type fakeTable struct {
	procs      []ProcessInfo
	terminated []int32
	denied     map[int32]bool
}

func (f *fakeTable) List(context.Context) ([]ProcessInfo, error) { return f.procs, nil }

func (f *fakeTable) Terminate(_ context.Context, pid int32) error {
	if f.denied[pid] {
		return errors.New("access denied")
	}
	for _, p := range f.procs {
		if p.PID == pid {
			f.terminated = append(f.terminated, pid)
			return nil
		}
	}
	return fmt.Errorf("process %d not found", pid)
}

type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	started []string
	output  string
	err     error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return []byte(f.output), f.err
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return f.err
}

type fakeClipboard struct {
	text string
}

func (f *fakeClipboard) Read() (string, error)   { return f.text, nil }
func (f *fakeClipboard) Write(text string) error { f.text = text; return nil }

// newTestToolset wires fakes for every desktop collaborator.
func newTestToolset(opts ...Option) (*Toolset, *fakeHID, *fakeTable, *fakeRunner, *fakeClipboard) {
	hid := &fakeHID{}
	table := &fakeTable{}
	runner := &fakeRunner{}
	clip := &fakeClipboard{}
	base := []Option{
		WithHID(hid),
		WithProcessTable(table),
		WithRunner(runner),
		WithClipboard(clip),
		WithClock(func() time.Time {
			return time.Date(2026, time.March, 14, 9, 5, 7, 0, time.Local)
		}),
	}
	return New(append(base, opts...)...), hid, table, runner, clip
}
