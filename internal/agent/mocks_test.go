package agent

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// testPNG encodes a blank PNG of the given dimensions.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

// toolCall wraps tool arguments in the wire format the model emits.
func toolCall(args string) string {
	return "<tool_call>\n{\"name\": \"computer_use\", \"arguments\": " + args + "}\n</tool_call>"
}

// mockBrowser records every interaction and serves a fixed frame.
type mockBrowser struct {
	frame        []byte
	scrollPos    schemas.ScrollPosition
	clickErr     error
	scrollPosErr error

	screenshots int
	gotos       []string
	clicks      []schemas.Point
	hovers      []schemas.Point
	typed       []string
	keys        []string
	wheelScroll []int
	pageUps     int
	pageDowns   int
	backs       int
}

var _ schemas.BrowserController = (*mockBrowser)(nil)

func (b *mockBrowser) Start(context.Context) error { return nil }
func (b *mockBrowser) Close(context.Context) error { return nil }

func (b *mockBrowser) Goto(_ context.Context, url string) error {
	b.gotos = append(b.gotos, url)
	return nil
}

func (b *mockBrowser) Screenshot(context.Context) ([]byte, error) {
	b.screenshots++
	return b.frame, nil
}

func (b *mockBrowser) Click(_ context.Context, x, y float64) error {
	if b.clickErr != nil {
		return b.clickErr
	}
	b.clicks = append(b.clicks, schemas.Point{X: x, Y: y})
	return nil
}

func (b *mockBrowser) Hover(_ context.Context, x, y float64) error {
	b.hovers = append(b.hovers, schemas.Point{X: x, Y: y})
	return nil
}

func (b *mockBrowser) TypeText(_ context.Context, text string, _, _ bool) error {
	b.typed = append(b.typed, text)
	return nil
}

func (b *mockBrowser) PressKey(_ context.Context, key string) error {
	b.keys = append(b.keys, key)
	return nil
}

func (b *mockBrowser) Scroll(_ context.Context, pixels int) error {
	b.wheelScroll = append(b.wheelScroll, pixels)
	return nil
}

func (b *mockBrowser) PageUp(context.Context) error   { b.pageUps++; return nil }
func (b *mockBrowser) PageDown(context.Context) error { b.pageDowns++; return nil }
func (b *mockBrowser) GoBack(context.Context) error   { b.backs++; return nil }

func (b *mockBrowser) CurrentURL(context.Context) (string, error) {
	return "https://example.com/start", nil
}

func (b *mockBrowser) GetScrollPosition(context.Context) (schemas.ScrollPosition, error) {
	if b.scrollPosErr != nil {
		return schemas.ScrollPosition{}, b.scrollPosErr
	}
	return b.scrollPos, nil
}

// mockModel replays scripted responses and records every call.
type mockModel struct {
	responses []string
	calls     [][]schemas.Message
}

var _ schemas.ModelCaller = (*mockModel)(nil)

func (m *mockModel) Complete(_ context.Context, messages []schemas.Message) (string, error) {
	m.calls = append(m.calls, messages)
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// lastUserText returns the text of the final user turn of call i.
func (m *mockModel) lastUserText(t *testing.T, i int) string {
	t.Helper()
	require.Less(t, i, len(m.calls))
	msgs := m.calls[i]
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, schemas.RoleUser, last.Role)
	return last.Text
}

// collectObserver accumulates events. The fan-out may deliver concurrently,
// so it locks.
type collectObserver struct {
	mu     sync.Mutex
	events []schemas.Event
}

var _ schemas.Observer = (*collectObserver)(nil)

func (o *collectObserver) OnEvent(_ context.Context, event schemas.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *collectObserver) countType(typ schemas.EventType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// testConfig returns defaults tuned for fast tests.
func testConfig(maxRounds int) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Agent.MaxRounds = maxRounds
	cfg.Agent.SettleDelay = 0
	cfg.Agent.SaveScreenshots = false
	return cfg
}
