package schemas

import "context"

// -- Browser Collaborator Contract --

// ScrollPosition describes the page's current scroll state as reported by
// the browser, in CSS pixels.
type ScrollPosition struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ScrollHeight   float64 `json:"scrollHeight"`
	ScrollWidth    float64 `json:"scrollWidth"`
	ViewportWidth  float64 `json:"viewportWidth"`
	ViewportHeight float64 `json:"viewportHeight"`
}

// BrowserController is the contract the orchestration loop consumes for all
// live page interaction. Coordinates are viewport device pixels; the loop
// never inspects page state except through these calls.
type BrowserController interface {
	// Start launches the browser and opens the working page.
	Start(ctx context.Context) error
	// Close tears the browser down. Safe to call more than once.
	Close(ctx context.Context) error

	// Goto navigates to a URL and waits for the page to settle.
	Goto(ctx context.Context, url string) error
	// Screenshot captures the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Click presses and releases the left mouse button at (x, y).
	Click(ctx context.Context, x, y float64) error
	// Hover moves the cursor to (x, y) without clicking.
	Hover(ctx context.Context, x, y float64) error
	// TypeText types into the focused element, optionally clearing existing
	// input first and pressing Enter afterwards.
	TypeText(ctx context.Context, text string, pressEnter, clearFirst bool) error
	// PressKey presses a single named key (e.g. "Enter", "Escape", "ArrowDown").
	PressKey(ctx context.Context, key string) error
	// Scroll wheel-scrolls by the given pixel delta (positive = up).
	Scroll(ctx context.Context, pixels int) error
	// PageUp and PageDown scroll one page via the keyboard.
	PageUp(ctx context.Context) error
	PageDown(ctx context.Context) error
	// GoBack navigates one entry back in history.
	GoBack(ctx context.Context) error
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// GetScrollPosition reports the page's scroll state.
	GetScrollPosition(ctx context.Context) (ScrollPosition, error)
}

// Annotator is an optional cosmetic extension of BrowserController for
// headful debugging. Its affordances are excluded from screenshots and carry
// no correctness weight; the agent uses it only when the controller provides
// it.
type Annotator interface {
	// UpdateOverlay replaces the debug overlay text.
	UpdateOverlay(ctx context.Context, text string) error
	// ShowClickMarker flashes a transient marker at viewport coordinates.
	ShowClickMarker(ctx context.Context, x, y float64, label string) error
}

// -- Model Collaborator Contract --

// ModelCaller performs one chat completion over the bounded multimodal
// conversation and returns the raw response text. Implementations own retry
// and provider-specific parameterization.
type ModelCaller interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// -- Observer Contract --

// Observer receives progress events from the orchestration loop. OnEvent may
// perform asynchronous work internally, but the loop waits for it to return
// before proceeding, preserving causal ordering between events and loop
// progress. Synchronous handlers simply return when done.
type Observer interface {
	OnEvent(ctx context.Context, event Event) error
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, event Event) error

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) error { return f(ctx, event) }
