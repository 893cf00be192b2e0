package desktop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
)

// HID drives the local mouse, keyboard and window focus.
type HID interface {
	Move(x, y int) error
	Click(button string, double bool) error
	Drag(startX, startY, endX, endY int) error
	Scroll(amount int) error
	Type(ctx context.Context, text string, interval time.Duration) error
	Hotkey(keys []string) error
	ActivateWindow(title string) error
}

// robotgoHID implements HID with robotgo.
type robotgoHID struct{}

// NewHID returns the robotgo-backed HID.
func NewHID() HID { return robotgoHID{} }

func (robotgoHID) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (robotgoHID) Click(button string, double bool) error {
	robotgo.Click(button, double)
	return nil
}

func (robotgoHID) Drag(startX, startY, endX, endY int) error {
	robotgo.Move(startX, startY)
	if err := robotgo.Toggle("left"); err != nil {
		return err
	}
	robotgo.MoveSmooth(endX, endY)
	return robotgo.Toggle("left", "up")
}

func (robotgoHID) Scroll(amount int) error {
	robotgo.Scroll(0, amount)
	return nil
}

func (robotgoHID) Type(ctx context.Context, text string, interval time.Duration) error {
	if interval <= 0 {
		robotgo.TypeStr(text)
		return nil
	}
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		robotgo.TypeStr(string(r))
		time.Sleep(interval)
	}
	return nil
}

func (robotgoHID) Hotkey(keys []string) error {
	key := keys[len(keys)-1]
	mods := make([]any, 0, len(keys)-1)
	for _, m := range keys[:len(keys)-1] {
		mods = append(mods, m)
	}
	return robotgo.KeyTap(key, mods...)
}

func (robotgoHID) ActivateWindow(title string) error {
	return robotgo.ActivateName(title)
}

// parseHotkey splits "ctrl+shift+t" into robotgo key names.
func parseHotkey(keys string) ([]string, error) {
	var out []string
	for _, k := range strings.Split(keys, "+") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if alias, ok := keyAliases[k]; ok {
			k = alias
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no keys in %q", keys)
	}
	return out, nil
}

var keyAliases = map[string]string{
	"ctl":     "ctrl",
	"control": "ctrl",
	"win":     "cmd",
	"windows": "cmd",
	"super":   "cmd",
	"command": "cmd",
	"option":  "alt",
	"return":  "enter",
	"esc":     "escape",
	"del":     "delete",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

func (t *Toolset) moveMouse(_ context.Context, args Args) (any, error) {
	x, y := args.Int("x", 0), args.Int("y", 0)
	if err := t.hid.Move(x, y); err != nil {
		return nil, fmt.Errorf("error moving mouse: %w", err)
	}
	return fmt.Sprintf("Mouse moved to (%d, %d)", x, y), nil
}

func (t *Toolset) clickMouse(_ context.Context, args Args) (any, error) {
	button := args.String("button", "left")
	double := args.Bool("double_click", false)
	if err := t.hid.Click(button, double); err != nil {
		return nil, fmt.Errorf("error clicking mouse: %w", err)
	}
	if double {
		return fmt.Sprintf("Double clicked %s button", button), nil
	}
	return fmt.Sprintf("Clicked %s button", button), nil
}

func (t *Toolset) dragMouse(_ context.Context, args Args) (any, error) {
	sx, sy := args.Int("start_x", 0), args.Int("start_y", 0)
	ex, ey := args.Int("end_x", 0), args.Int("end_y", 0)
	if err := t.hid.Drag(sx, sy, ex, ey); err != nil {
		return nil, fmt.Errorf("error dragging mouse: %w", err)
	}
	return fmt.Sprintf("Dragged mouse from (%d, %d) to (%d, %d)", sx, sy, ex, ey), nil
}

func (t *Toolset) scroll(_ context.Context, args Args) (any, error) {
	amount := args.Int("amount", 0)
	if err := t.hid.Scroll(amount); err != nil {
		return nil, fmt.Errorf("error scrolling: %w", err)
	}
	return fmt.Sprintf("Scrolled %d", amount), nil
}

func (t *Toolset) typeText(ctx context.Context, args Args) (any, error) {
	text := args.String("text", "")
	interval := time.Duration(args.Float("interval", 0) * float64(time.Second))
	if err := t.hid.Type(ctx, text, interval); err != nil {
		return nil, fmt.Errorf("error typing text: %w", err)
	}
	return "Typed: " + text, nil
}

func (t *Toolset) pressHotkey(_ context.Context, args Args) (any, error) {
	raw := args.String("keys", "")
	keys, err := parseHotkey(raw)
	if err != nil {
		return nil, err
	}
	if err := t.hid.Hotkey(keys); err != nil {
		return nil, fmt.Errorf("error pressing hotkey: %w", err)
	}
	return "Pressed hotkey: " + raw, nil
}

func (t *Toolset) switchWindow(_ context.Context, args Args) (any, error) {
	title := args.String("window_title", "")
	if err := t.hid.ActivateWindow(title); err != nil {
		return nil, fmt.Errorf("window %q not found: %w", title, err)
	}
	return "Switched to window: " + title, nil
}
