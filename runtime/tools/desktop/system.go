package desktop

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// Runner executes external commands.
type Runner interface {
	// Run waits for the command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches the command without waiting for it.
	Start(ctx context.Context, name string, args ...string) error
}

// execRunner implements Runner with os/exec.
type execRunner struct{}

// NewRunner returns the os/exec-backed Runner.
func NewRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (execRunner) Start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background; the launched program outlives the call.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type systemClipboard struct{}

// NewClipboard returns the system clipboard.
func NewClipboard() Clipboard { return systemClipboard{} }

func (systemClipboard) Read() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) Write(text string) error { return clipboard.WriteAll(text) }

// command is one external invocation.
type command struct {
	name string
	args []string
}

// shellCommand wraps a shell line for the platform shell.
func shellCommand(goos, line string) command {
	if goos == "windows" {
		return command{"powershell", []string{"-NoProfile", "-Command", line}}
	}
	return command{"sh", []string{"-c", line}}
}

// powerCommand maps a power action to the platform command and its reply.
func powerCommand(goos, action string) (command, string, error) {
	replies := map[string]string{
		"shutdown": "System shutting down in 5 seconds.",
		"restart":  "System restarting in 5 seconds.",
		"sleep":    "System going to sleep...",
		"lock":     "System locked.",
	}
	reply, ok := replies[action]
	if !ok {
		return command{}, "", fmt.Errorf("unknown power action %q", action)
	}

	var table map[string]command
	switch goos {
	case "windows":
		table = map[string]command{
			"shutdown": {"shutdown", []string{"/s", "/t", "5"}},
			"restart":  {"shutdown", []string{"/r", "/t", "5"}},
			"sleep":    {"rundll32.exe", []string{"powrprof.dll,SetSuspendState", "0,1,0"}},
			"lock":     {"rundll32.exe", []string{"user32.dll,LockWorkStation"}},
		}
	case "darwin":
		table = map[string]command{
			"shutdown": {"osascript", []string{"-e", `tell app "System Events" to shut down`}},
			"restart":  {"osascript", []string{"-e", `tell app "System Events" to restart`}},
			"sleep":    {"pmset", []string{"sleepnow"}},
			"lock":     {"pmset", []string{"displaysleepnow"}},
		}
	default:
		table = map[string]command{
			"shutdown": {"systemctl", []string{"poweroff", "--when=+5s"}},
			"restart":  {"systemctl", []string{"reboot", "--when=+5s"}},
			"sleep":    {"systemctl", []string{"suspend"}},
			"lock":     {"loginctl", []string{"lock-session"}},
		}
	}
	return table[action], reply, nil
}

// volumeCommand maps a volume action to the platform command.
func volumeCommand(goos, action string, level int) (command, error) {
	switch goos {
	case "windows":
		// WScript can only toggle mute via the media key; levels need an
		// endpoint API that has no CLI.
		if action == "set" {
			return command{}, errors.New("setting a volume level is not supported on windows")
		}
		return shellCommand(goos, "(New-Object -ComObject WScript.Shell).SendKeys([char]173)"), nil
	case "darwin":
		switch action {
		case "set":
			return command{"osascript", []string{"-e", fmt.Sprintf("set volume output volume %d", level)}}, nil
		case "mute":
			return command{"osascript", []string{"-e", "set volume with output muted"}}, nil
		case "unmute":
			return command{"osascript", []string{"-e", "set volume without output muted"}}, nil
		}
	default:
		switch action {
		case "set":
			return command{"pactl", []string{"set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", level)}}, nil
		case "mute":
			return command{"pactl", []string{"set-sink-mute", "@DEFAULT_SINK@", "1"}}, nil
		case "unmute":
			return command{"pactl", []string{"set-sink-mute", "@DEFAULT_SINK@", "0"}}, nil
		}
	}
	return command{}, fmt.Errorf("unknown volume action %q", action)
}

// brightnessCommand maps a brightness percentage to the platform command.
func brightnessCommand(goos string, level int) command {
	switch goos {
	case "windows":
		return shellCommand(goos, fmt.Sprintf(
			"(Get-WmiObject -Namespace root/WMI -Class WmiMonitorBrightnessMethods).WmiSetBrightness(1,%d)", level))
	case "darwin":
		return command{"brightness", []string{fmt.Sprintf("%.2f", float64(level)/100)}}
	default:
		return command{"brightnessctl", []string{"set", fmt.Sprintf("%d%%", level)}}
	}
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}

func (t *Toolset) run(ctx context.Context, c command) error {
	out, err := t.runner.Run(ctx, c.name, c.args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// runCommand executes a shell line with the platform shell.
func (t *Toolset) runCommand(ctx context.Context, args Args) (any, error) {
	line := args.String("command", "")
	c := shellCommand(runtime.GOOS, line)
	out, err := t.runner.Run(ctx, c.name, c.args...)
	if err != nil {
		return nil, fmt.Errorf("error occurred: %w", err)
	}
	reply := "Command executed successfully: " + line
	if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
		reply += "\n" + trimmed
	}
	return reply, nil
}

func (t *Toolset) systemPower(ctx context.Context, args Args) (any, error) {
	c, reply, err := powerCommand(runtime.GOOS, args.String("action", ""))
	if err != nil {
		return nil, err
	}
	if err := t.run(ctx, c); err != nil {
		return nil, fmt.Errorf("error in system power: %w", err)
	}
	return reply, nil
}

func (t *Toolset) volumeControl(ctx context.Context, args Args) (any, error) {
	action := args.String("action", "")
	level, hasLevel := args.OptionalInt("level")
	if action == "set" && !hasLevel {
		return nil, errors.New("level is required to set the volume")
	}
	level = clampPercent(level)

	c, err := volumeCommand(runtime.GOOS, action, level)
	if err != nil {
		return nil, err
	}
	if err := t.run(ctx, c); err != nil {
		return nil, fmt.Errorf("error in volume control: %w", err)
	}
	switch action {
	case "set":
		return fmt.Sprintf("Volume set to %d%%", level), nil
	case "mute":
		return "Volume muted.", nil
	default:
		return "Volume unmuted.", nil
	}
}

func (t *Toolset) brightnessControl(ctx context.Context, args Args) (any, error) {
	level := clampPercent(args.Int("level", 0))
	if err := t.run(ctx, brightnessCommand(runtime.GOOS, level)); err != nil {
		return nil, fmt.Errorf("error setting brightness: %w", err)
	}
	return fmt.Sprintf("Brightness set to %d%%", level), nil
}

func (t *Toolset) getClipboard(_ context.Context, _ Args) (any, error) {
	text, err := t.clipboard.Read()
	if err != nil {
		return nil, fmt.Errorf("error getting clipboard: %w", err)
	}
	return text, nil
}

func (t *Toolset) setClipboard(_ context.Context, args Args) (any, error) {
	if err := t.clipboard.Write(args.String("text", "")); err != nil {
		return nil, fmt.Errorf("error setting clipboard: %w", err)
	}
	return "Text copied to clipboard.", nil
}
