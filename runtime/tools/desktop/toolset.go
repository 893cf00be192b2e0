// Package desktop implements the agent's local tools: mouse and keyboard
// control, process management, file operations, system controls, a
// Chrome-driven browser and web information lookups.
//
// Every tool is bound into a tools.Registry by name; the catalog entry of the
// same name supplies the description and input schema.
package desktop

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deskpilot/deskpilot/pkg/httputil"
	"github.com/deskpilot/deskpilot/runtime/tools"
)

// Toolset holds the collaborators shared by the desktop tools.
type Toolset struct {
	hid       HID
	procs     ProcessTable
	runner    Runner
	clipboard Clipboard
	browser   *Browser
	http      *http.Client
	endpoints Endpoints
	now       func() time.Time

	weatherKey string
	newsKey    string
}

// Option configures a Toolset.
type Option func(*Toolset)

// WithHID replaces the mouse and keyboard driver.
func WithHID(h HID) Option { return func(t *Toolset) { t.hid = h } }

// WithProcessTable replaces the process table.
func WithProcessTable(p ProcessTable) Option { return func(t *Toolset) { t.procs = p } }

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option { return func(t *Toolset) { t.runner = r } }

// WithClipboard replaces the clipboard.
func WithClipboard(c Clipboard) Option { return func(t *Toolset) { t.clipboard = c } }

// WithBrowser replaces the browser.
func WithBrowser(b *Browser) Option { return func(t *Toolset) { t.browser = b } }

// WithHTTPClient replaces the info tools' HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(t *Toolset) { t.http = c } }

// WithEndpoints replaces the info service endpoints.
func WithEndpoints(e Endpoints) Option { return func(t *Toolset) { t.endpoints = e } }

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option { return func(t *Toolset) { t.now = now } }

// WithAPIKeys sets the weatherapi.com and NewsAPI keys.
func WithAPIKeys(weather, news string) Option {
	return func(t *Toolset) {
		t.weatherKey = weather
		t.newsKey = news
	}
}

// New creates a Toolset backed by the real desktop.
func New(opts ...Option) *Toolset {
	t := &Toolset{
		hid:       NewHID(),
		procs:     NewProcessTable(),
		runner:    NewRunner(),
		clipboard: NewClipboard(),
		endpoints: DefaultEndpoints(),
		now:       time.Now,
		http:      httputil.NewHTTPClient(httputil.DefaultToolTimeout),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.browser == nil {
		t.browser = NewBrowser(DefaultBrowserConfig())
	}
	return t
}

type handler func(ctx context.Context, args Args) (any, error)

// handlers maps tool names to their implementations.
func (t *Toolset) handlers() map[string]handler {
	return map[string]handler{
		// info
		"get_weather":      t.getWeather,
		"run_command":      t.runCommand,
		"get_news":         t.getNews,
		"get_local_time":   t.getLocalTime,
		"wikipedia_search": t.wikipediaSearch,
		"get_gaming_news":  t.getGamingNews,

		// hid
		"move_mouse":   t.moveMouse,
		"click_mouse":  t.clickMouse,
		"drag_mouse":   t.dragMouse,
		"scroll":       t.scroll,
		"type_text":    t.typeText,
		"press_hotkey": t.pressHotkey,

		// process
		"open_application":      t.openApplication,
		"close_application":     t.closeApplication,
		"list_active_processes": t.listActiveProcesses,
		"switch_window":         t.switchWindow,

		// files
		"read_file":     t.readFile,
		"write_to_file": t.writeToFile,
		"manage_files":  t.manageFiles,
		"search_files":  t.searchFiles,

		// system
		"system_power":       t.systemPower,
		"volume_control":     t.volumeControl,
		"brightness_control": t.brightnessControl,
		"get_clipboard":      t.getClipboard,
		"set_clipboard":      t.setClipboard,

		// browser
		"browser_open":              t.browserOpen,
		"browser_type":              t.browserType,
		"browser_click":             t.browserClick,
		"browser_get_text":          t.browserGetText,
		"browser_scroll":            t.browserScroll,
		"browser_capture_full_page": t.browserCaptureFullPage,
	}
}

// Names returns the names of every tool the Toolset implements.
func (t *Toolset) Names() []string {
	h := t.handlers()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	return names
}

// Register binds every tool whose descriptor is present in reg. Tools the
// catalog does not describe are skipped and reported in the returned count.
func (t *Toolset) Register(reg *tools.Registry) (skipped int, err error) {
	for name, h := range t.handlers() {
		if reg.Get(name) == nil {
			skipped++
			continue
		}
		fn := h
		if err := reg.Bind(tools.NewFunc(name, func(ctx context.Context, args map[string]any) (any, error) {
			return fn(ctx, Args(args))
		})); err != nil {
			return skipped, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return skipped, nil
}

// Close releases the browser.
func (t *Toolset) Close() error {
	return t.browser.Close()
}
