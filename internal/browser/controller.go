// Package browser implements the live page controller on top of chromedp.
// All interaction goes through CDP input events at viewport device pixels;
// nothing here inspects the DOM beyond the scroll-state probe.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	cdbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// Post-action settle pauses, matching what real pages need to react to
// synthetic input before the next screenshot.
const (
	clickSettle = 300 * time.Millisecond
	hoverSettle = 200 * time.Millisecond
	inputSettle = 300 * time.Millisecond
	navSettle   = 500 * time.Millisecond
	backSettle  = 500 * time.Millisecond
	clearSettle = 150 * time.Millisecond
)

// Controller drives one Chrome tab. It implements schemas.BrowserController
// and schemas.Annotator.
type Controller struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
	started     bool

	overlayCreated  bool
	markerCreated   bool
	lastOverlayText string
}

var (
	_ schemas.BrowserController = (*Controller)(nil)
	_ schemas.Annotator         = (*Controller)(nil)
)

// New creates a controller; the browser process starts on Start.
func New(cfg config.BrowserConfig, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}
}

// Start launches Chrome, opens the working tab and pins the viewport.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.WindowSize(c.cfg.ViewportWidth, c.cfg.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(c.cfg.ViewportWidth), int64(c.cfg.ViewportHeight), 1, false),
	}
	if c.cfg.DownloadsFolder != "" {
		if err := os.MkdirAll(c.cfg.DownloadsFolder, 0o755); err != nil {
			allocCancel()
			tabCancel()
			return fmt.Errorf("create downloads folder: %w", err)
		}
		actions = append(actions,
			cdbrowser.SetDownloadBehavior(cdbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(c.cfg.DownloadsFolder))
	}

	if err := chromedp.Run(tab, actions...); err != nil {
		allocCancel()
		tabCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	c.allocCancel = allocCancel
	c.tabCancel = tabCancel
	c.tab = tab
	c.started = true
	c.logger.Info("Browser started",
		zap.Bool("headless", c.cfg.Headless),
		zap.Int("viewport_width", c.cfg.ViewportWidth),
		zap.Int("viewport_height", c.cfg.ViewportHeight))
	return nil
}

// Close tears the browser down. Safe to call more than once.
func (c *Controller) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.tabCancel()
	c.allocCancel()
	c.started = false
	c.logger.Info("Browser closed")
	return nil
}

// run executes chromedp actions on the working tab, honoring the caller's
// deadline.
func (c *Controller) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	tab := c.tab
	started := c.started
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("browser not started")
	}

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tab, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Goto navigates to a URL and waits for the page to settle.
func (c *Controller) Goto(ctx context.Context, url string) error {
	navCtx := ctx
	if c.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, c.cfg.NavigationTimeout)
		defer cancel()
	}

	if err := c.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := settle(ctx, navSettle); err != nil {
		return err
	}
	c.restoreOverlayText(ctx)
	return nil
}

// Screenshot captures the visible viewport as PNG, with the debug overlay
// and click marker hidden for the duration of the capture.
func (c *Controller) Screenshot(ctx context.Context) ([]byte, error) {
	overlayVisible := c.hideAnnotation(ctx, overlayID)
	markerVisible := c.hideAnnotation(ctx, markerID)

	var buf []byte
	err := c.run(ctx, chromedp.CaptureScreenshot(&buf))

	if overlayVisible {
		c.showAnnotation(ctx, overlayID)
	}
	if markerVisible {
		c.showAnnotation(ctx, markerID)
	}
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Click presses and releases the left mouse button at (x, y).
func (c *Controller) Click(ctx context.Context, x, y float64) error {
	err := c.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MousePressed, x, y).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseReleased, x, y).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("click at (%.1f, %.1f): %w", x, y, err)
	}
	return settle(ctx, clickSettle)
}

// Hover moves the cursor to (x, y) without clicking.
func (c *Controller) Hover(ctx context.Context, x, y float64) error {
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("hover at (%.1f, %.1f): %w", x, y, err)
	}
	return settle(ctx, hoverSettle)
}

// TypeText types into the focused element. clearFirst selects all and
// deletes before typing; pressEnter submits afterwards.
func (c *Controller) TypeText(ctx context.Context, text string, pressEnter, clearFirst bool) error {
	if clearFirst {
		err := c.run(ctx,
			chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
			chromedp.KeyEvent(kb.Backspace),
		)
		if err != nil {
			return fmt.Errorf("clear input: %w", err)
		}
		if err := settle(ctx, clearSettle); err != nil {
			return err
		}
	}

	if err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	})); err != nil {
		return fmt.Errorf("type text: %w", err)
	}

	if pressEnter {
		if err := c.run(ctx, chromedp.KeyEvent(kb.Enter)); err != nil {
			return fmt.Errorf("press enter: %w", err)
		}
	}
	return settle(ctx, inputSettle)
}

// PressKey presses a single named key.
func (c *Controller) PressKey(ctx context.Context, key string) error {
	chord, ok := keyChord(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := c.run(ctx, chromedp.KeyEvent(chord)); err != nil {
		return fmt.Errorf("press key %s: %w", key, err)
	}
	return settle(ctx, inputSettle)
}

// Scroll wheel-scrolls by the given pixel delta. Positive means up, so the
// wheel delta is negated.
func (c *Controller) Scroll(ctx context.Context, pixels int) error {
	x := float64(c.cfg.ViewportWidth) / 2
	y := float64(c.cfg.ViewportHeight) / 2
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(float64(-pixels)).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("scroll %d: %w", pixels, err)
	}
	return settle(ctx, inputSettle)
}

// PageUp scrolls up one page via the keyboard.
func (c *Controller) PageUp(ctx context.Context) error {
	if err := c.run(ctx, chromedp.KeyEvent(kb.PageUp)); err != nil {
		return fmt.Errorf("page up: %w", err)
	}
	return settle(ctx, inputSettle)
}

// PageDown scrolls down one page via the keyboard.
func (c *Controller) PageDown(ctx context.Context) error {
	if err := c.run(ctx, chromedp.KeyEvent(kb.PageDown)); err != nil {
		return fmt.Errorf("page down: %w", err)
	}
	return settle(ctx, inputSettle)
}

// GoBack navigates one entry back in history.
func (c *Controller) GoBack(ctx context.Context) error {
	if err := c.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return settle(ctx, backSettle)
}

// CurrentURL returns the page's current location.
func (c *Controller) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

const scrollPositionJS = `(() => {
	const y = window.scrollY || 0;
	const x = window.scrollX || 0;
	const h = Math.max(
		document.body.scrollHeight || 0,
		document.documentElement.scrollHeight || 0
	);
	const w = Math.max(
		document.body.scrollWidth || 0,
		document.documentElement.scrollWidth || 0
	);
	const vh = window.innerHeight || 1;
	const vw = window.innerWidth || 1;
	return { x, y, scrollHeight: h, scrollWidth: w, viewportWidth: vw, viewportHeight: vh };
})()`

// GetScrollPosition reports the page's scroll state. The caller decides how
// to degrade when the probe fails.
func (c *Controller) GetScrollPosition(ctx context.Context) (schemas.ScrollPosition, error) {
	var pos schemas.ScrollPosition
	if err := c.run(ctx, chromedp.Evaluate(scrollPositionJS, &pos)); err != nil {
		return schemas.ScrollPosition{}, fmt.Errorf("scroll position probe: %w", err)
	}
	return pos, nil
}

// keyChord maps a key name from the action protocol to the chromedp key
// runes. Single characters pass through unchanged.
func keyChord(key string) (string, bool) {
	switch key {
	case "Enter", "Return":
		return kb.Enter, true
	case "Tab":
		return kb.Tab, true
	case "Escape", "Esc":
		return kb.Escape, true
	case "Backspace":
		return kb.Backspace, true
	case "Delete":
		return kb.Delete, true
	case "ArrowUp", "Up":
		return kb.ArrowUp, true
	case "ArrowDown", "Down":
		return kb.ArrowDown, true
	case "ArrowLeft", "Left":
		return kb.ArrowLeft, true
	case "ArrowRight", "Right":
		return kb.ArrowRight, true
	case "PageUp":
		return kb.PageUp, true
	case "PageDown":
		return kb.PageDown, true
	case "Home":
		return kb.Home, true
	case "End":
		return kb.End, true
	case "Space":
		return " ", true
	}
	if len([]rune(key)) == 1 {
		return key, true
	}
	return "", false
}

// settle waits for d or until the context is done.
func settle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
