package desktop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

// Browser defaults.
const (
	DefaultElementTimeout = 10 * time.Second
	DefaultScreenshotDir  = "temp"
	screenshotFile        = "full_page_screenshot.png"
	defaultScrollAmount   = 500
)

// BrowserConfig configures the automated Chrome instance.
type BrowserConfig struct {
	Headless       bool
	ElementTimeout time.Duration
	ScreenshotDir  string
	ExecPath       string
}

// DefaultBrowserConfig returns a visible browser that waits up to ten
// seconds for elements.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		ElementTimeout: DefaultElementTimeout,
		ScreenshotDir:  DefaultScreenshotDir,
	}
}

// Browser is a lazily started Chrome session shared by the browser tools.
// The first browser tool call starts it; Close shuts it down.
type Browser struct {
	cfg BrowserConfig

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowser creates an unstarted browser.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = DefaultElementTimeout
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = DefaultScreenshotDir
	}
	return &Browser{cfg: cfg}
}

// ensure starts Chrome on first use. Callers hold b.mu.
func (b *Browser) ensure() error {
	if b.ctx != nil {
		if b.ctx.Err() == nil {
			return nil
		}
		// the user closed the window; start a fresh one
		b.shutdown()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.ctx, b.cancel, b.allocCancel = ctx, cancel, allocCancel
	logger.Info("Browser started", "headless", b.cfg.Headless)
	return nil
}

// run executes actions against the shared tab, bounded by the element
// timeout and by the caller's ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensure(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(b.ctx, b.cfg.ElementTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Open navigates to url.
func (b *Browser) Open(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

// Type clears the element and types text into it.
func (b *Browser) Type(ctx context.Context, selector, text, byMethod string) error {
	sel, by := querySelector(selector, byMethod)
	return b.run(ctx,
		chromedp.WaitReady(sel, by),
		chromedp.Clear(sel, by),
		chromedp.SendKeys(sel, text, by),
	)
}

// Click waits for the element to be visible and clicks it.
func (b *Browser) Click(ctx context.Context, selector, byMethod string) error {
	sel, by := querySelector(selector, byMethod)
	return b.run(ctx, chromedp.Click(sel, by, chromedp.NodeVisible))
}

// Text returns the visible text of the element.
func (b *Browser) Text(ctx context.Context, selector, byMethod string) (string, error) {
	sel, by := querySelector(selector, byMethod)
	var text string
	err := b.run(ctx, chromedp.Text(sel, &text, by, chromedp.NodeVisible))
	return text, err
}

// Scroll scrolls the page vertically by amount pixels.
func (b *Browser) Scroll(ctx context.Context, direction string, amount int) error {
	delta := float64(scrollDelta(direction, amount))
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, 0, 0).
			WithDeltaX(0).
			WithDeltaY(delta).Do(ctx)
	}))
}

// CaptureFullPage saves a PNG of the whole page and returns its absolute path.
func (b *Browser) CaptureFullPage(ctx context.Context) (string, error) {
	var buf []byte
	// quality 100 produces PNG
	if err := b.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.cfg.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	path, err := filepath.Abs(filepath.Join(b.cfg.ScreenshotDir, screenshotFile))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Close shuts the browser down if it was started.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		logger.Info("Closing browser")
		b.shutdown()
	}
	return nil
}

func (b *Browser) shutdown() {
	b.cancel()
	b.allocCancel()
	b.ctx, b.cancel, b.allocCancel = nil, nil, nil
}

// querySelector maps a locator strategy name to a chromedp selector and
// query option. Unknown strategies fall back to CSS.
func querySelector(selector, byMethod string) (string, chromedp.QueryOption) {
	switch strings.ToLower(strings.TrimSpace(byMethod)) {
	case "id":
		return selector, chromedp.ByID
	case "xpath":
		return selector, chromedp.BySearch
	case "name":
		return fmt.Sprintf("[name=%q]", selector), chromedp.ByQuery
	case "class_name", "class":
		return "." + selector, chromedp.ByQuery
	case "tag_name", "tag":
		return selector, chromedp.ByQuery
	default:
		return selector, chromedp.ByQuery
	}
}

// scrollDelta is the wheel delta for a direction; positive scrolls down.
func scrollDelta(direction string, amount int) int {
	if direction != "down" {
		return -amount
	}
	return amount
}

func (t *Toolset) browserOpen(ctx context.Context, args Args) (any, error) {
	url := args.String("url", "")
	if err := t.browser.Open(ctx, url); err != nil {
		return nil, fmt.Errorf("error opening browser: %w", err)
	}
	return "Opened URL: " + url, nil
}

func (t *Toolset) browserType(ctx context.Context, args Args) (any, error) {
	selector, text := args.String("selector", ""), args.String("text", "")
	if err := t.browser.Type(ctx, selector, text, args.String("by_method", "css")); err != nil {
		return nil, fmt.Errorf("error typing in browser: %w", err)
	}
	return fmt.Sprintf("Typed '%s' into %s", text, selector), nil
}

func (t *Toolset) browserClick(ctx context.Context, args Args) (any, error) {
	selector := args.String("selector", "")
	if err := t.browser.Click(ctx, selector, args.String("by_method", "css")); err != nil {
		return nil, fmt.Errorf("error clicking in browser: %w", err)
	}
	return "Clicked element " + selector, nil
}

func (t *Toolset) browserGetText(ctx context.Context, args Args) (any, error) {
	text, err := t.browser.Text(ctx, args.String("selector", ""), args.String("by_method", "css"))
	if err != nil {
		return nil, fmt.Errorf("error getting text: %w", err)
	}
	return text, nil
}

func (t *Toolset) browserScroll(ctx context.Context, args Args) (any, error) {
	direction := args.String("direction", "down")
	amount := args.Int("amount", defaultScrollAmount)
	if err := t.browser.Scroll(ctx, direction, amount); err != nil {
		return nil, fmt.Errorf("error scrolling browser: %w", err)
	}
	return fmt.Sprintf("Scrolled %s by %d", direction, amount), nil
}

func (t *Toolset) browserCaptureFullPage(ctx context.Context, _ Args) (any, error) {
	path, err := t.browser.CaptureFullPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error capturing browser: %w", err)
	}
	return "Screenshot saved to " + path, nil
}
