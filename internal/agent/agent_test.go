package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

func newTestAgent(t *testing.T, maxRounds int, browser *mockBrowser, model *mockModel, obs schemas.Observer) *Agent {
	t.Helper()
	if browser.frame == nil {
		// 280x140 is already factor-aligned and inside the pixel budget, so
		// the normalized frame keeps these dimensions exactly.
		browser.frame = testPNG(t, 280, 140)
	}
	return New(testConfig(maxRounds), browser, model, obs, zap.NewNop())
}

func TestRunEndsWhenNoActionParsed(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{"I am not sure what to do here."}}
	obs := &collectObserver{}
	a := newTestAgent(t, 5, browser, model, obs)

	res, err := a.Run(context.Background(), "find the pricing page")
	require.NoError(t, err)

	assert.Equal(t, ReasonNoAction, res.Reason)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 1, browser.screenshots)
	assert.Empty(t, browser.clicks)
	assert.Empty(t, browser.gotos)
	assert.Equal(t, 1, obs.countType(schemas.EventScreenshot))
	assert.Equal(t, 1, obs.countType(schemas.EventStatus))
}

func TestRunImmediateTerminate(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{toolCall(`{"action": "terminate", "status": "success"}`)}}
	obs := &collectObserver{}
	a := newTestAgent(t, 5, browser, model, obs)

	res, err := a.Run(context.Background(), "nothing to do")
	require.NoError(t, err)

	assert.Equal(t, "success", res.Reason)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "Task completed with status: success", res.Summary)
	assert.Equal(t, 1, browser.screenshots)
	assert.Empty(t, browser.clicks)
	assert.Zero(t, obs.countType(schemas.EventActionResult))
}

func TestRunMapsClickCoordinatesToViewport(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "left_click", "coordinate": [28, 14]}`),
		toolCall(`{"action": "terminate", "status": "success"}`),
	}}
	a := newTestAgent(t, 5, browser, model, nil)

	res, err := a.Run(context.Background(), "click the button")
	require.NoError(t, err)

	assert.Equal(t, "success", res.Reason)
	assert.Equal(t, 2, res.Rounds)
	require.Len(t, browser.clicks, 1)
	assert.InDelta(t, 144.0, browser.clicks[0].X, 0.001)
	assert.InDelta(t, 90.0, browser.clicks[0].Y, 0.001)
}

func TestRunExhaustsRoundBudget(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{toolCall(`{"action": "history_back"}`)}}
	obs := &collectObserver{}
	a := newTestAgent(t, 3, browser, model, obs)

	res, err := a.Run(context.Background(), "keep going back")
	require.NoError(t, err)

	assert.Equal(t, ReasonMaxRounds, res.Reason)
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, 3, browser.backs)
	// Initial frame plus one per completed round.
	assert.Equal(t, 4, browser.screenshots)
	assert.Equal(t, 3, obs.countType(schemas.EventActionResult))
}

func TestRunStopBeforeFirstRound(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{toolCall(`{"action": "history_back"}`)}}
	a := newTestAgent(t, 5, browser, model, nil)

	a.Stop()
	res, err := a.Run(context.Background(), "never starts")
	require.NoError(t, err)

	assert.Equal(t, ReasonStopped, res.Reason)
	assert.Equal(t, 0, res.Rounds)
	assert.Empty(t, model.calls)
}

func TestRunScrollOscillationWarnsModel(t *testing.T) {
	browser := &mockBrowser{scrollPos: schemas.ScrollPosition{Y: 400, ScrollHeight: 2000}}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "scroll", "pixels": 500}`),
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "scroll", "pixels": 500}`),
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "scroll", "pixels": 500}`),
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "terminate", "status": "failure"}`),
	}}
	a := newTestAgent(t, 10, browser, model, nil)

	res, err := a.Run(context.Background(), "find the footer")
	require.NoError(t, err)

	assert.Equal(t, "failure", res.Reason)
	assert.Equal(t, 3, browser.pageUps)
	assert.Equal(t, 3, browser.pageDowns)

	// After three scrolls the oscillation threshold is not met.
	assert.NotContains(t, model.lastUserText(t, 3), "Loop warning")
	// After four mixed-direction scrolls the advisory reaches the model.
	assert.Contains(t, model.lastUserText(t, 4), "Loop warning")
	assert.Contains(t, model.lastUserText(t, 4), "Scroll position: 400/2000 (20.0%)")
}

func TestRunScrollSameDirectionNoWarning(t *testing.T) {
	browser := &mockBrowser{scrollPos: schemas.ScrollPosition{Y: 1200, ScrollHeight: 2000}}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "terminate", "status": "success"}`),
	}}
	a := newTestAgent(t, 10, browser, model, nil)

	_, err := a.Run(context.Background(), "read to the bottom")
	require.NoError(t, err)

	assert.Equal(t, 3, browser.pageDowns)
	for i := range model.calls {
		assert.NotContains(t, model.lastUserText(t, i), "Loop warning")
	}
}

func TestRunScrollProbeFailureSkipsSample(t *testing.T) {
	browser := &mockBrowser{scrollPosErr: errors.New("evaluate timed out")}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "scroll", "pixels": -500}`),
		toolCall(`{"action": "terminate", "status": "success"}`),
	}}
	a := newTestAgent(t, 5, browser, model, nil)

	res, err := a.Run(context.Background(), "scroll past a flaky page")
	require.NoError(t, err)

	// The scroll itself succeeds; only the sample is lost.
	assert.Equal(t, "success", res.Reason)
	assert.Equal(t, 1, browser.pageDowns)
	second := model.lastUserText(t, 1)
	assert.Contains(t, second, "I scrolled down one page")
	assert.NotContains(t, second, "Scroll position:")
}

func TestRunActionFailureBecomesObservation(t *testing.T) {
	browser := &mockBrowser{clickErr: errors.New("node detached")}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "left_click", "coordinate": [10, 10]}`),
		toolCall(`{"action": "terminate", "status": "failure"}`),
	}}
	obs := &collectObserver{}
	a := newTestAgent(t, 5, browser, model, obs)

	res, err := a.Run(context.Background(), "click something fragile")
	require.NoError(t, err)

	assert.Equal(t, "failure", res.Reason)
	assert.Equal(t, 2, res.Rounds, "a failed action must not abort the run")
	assert.Contains(t, model.lastUserText(t, 1), "Action failed: node detached")
}

func TestRunMemorizedFactsAppearInSummary(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "pause_and_memorize_fact", "fact": "The plan costs $42/month"}`),
		toolCall(`{"action": "terminate", "status": "success"}`),
	}}
	a := newTestAgent(t, 5, browser, model, nil)

	res, err := a.Run(context.Background(), "find the price")
	require.NoError(t, err)

	assert.Equal(t, []string{"The plan costs $42/month"}, res.Facts)
	assert.Contains(t, res.Summary, "The plan costs $42/month")
}

func TestRunRecentActionsInContext(t *testing.T) {
	browser := &mockBrowser{}
	model := &mockModel{responses: []string{
		toolCall(`{"action": "visit_url", "url": "example.org"}`),
		toolCall(`{"action": "terminate", "status": "success"}`),
	}}
	a := newTestAgent(t, 5, browser, model, nil)

	_, err := a.Run(context.Background(), "visit the site")
	require.NoError(t, err)

	require.Len(t, browser.gotos, 1)
	assert.Equal(t, "https://example.org", browser.gotos[0])
	second := model.lastUserText(t, 1)
	assert.Contains(t, second, "Recent actions:")
	assert.Contains(t, second, "1. visit_url: I typed 'example.org' into the browser address bar.")
	assert.Contains(t, second, "Task: visit the site")
	assert.Contains(t, second, "Current URL: https://example.com/start")
}

func TestRunModelErrorAborts(t *testing.T) {
	boom := errors.New("endpoint unreachable")
	browser := &mockBrowser{frame: testPNG(t, 280, 140)}
	obs := &collectObserver{}
	a := New(testConfig(5), browser, &erroringModel{err: boom}, obs, zap.NewNop())

	_, err := a.Run(context.Background(), "doomed")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, obs.countType(schemas.EventError))
}

type erroringModel struct{ err error }

func (m *erroringModel) Complete(context.Context, []schemas.Message) (string, error) {
	return "", m.err
}

func TestNormalizeURLOrSearch(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com", "https://example.com"},
		{"http://example.com/a?b=c", "http://example.com/a?b=c"},
		{"about:blank", "about:blank"},
		{"example.com", "https://example.com"},
		{"cheap flights to lisbon", "https://www.bing.com/search?q=cheap+flights+to+lisbon"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeURLOrSearch(tc.in), tc.in)
	}
}

func TestMultiObserverFansOutAndWaits(t *testing.T) {
	a := &collectObserver{}
	b := &collectObserver{}
	m := NewMultiObserver(a, nil, b)

	err := m.OnEvent(context.Background(), schemas.Event{Type: schemas.EventStatus, Content: "done"})
	require.NoError(t, err)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestMultiObserverPropagatesError(t *testing.T) {
	boom := errors.New("sink full")
	failing := schemas.ObserverFunc(func(context.Context, schemas.Event) error { return boom })
	m := NewMultiObserver(&collectObserver{}, failing)

	err := m.OnEvent(context.Background(), schemas.Event{Type: schemas.EventStatus})
	assert.ErrorIs(t, err, boom)
}

func TestLoggingObserverHandlesAllTypes(t *testing.T) {
	o := NewLoggingObserver(zap.NewNop())
	for _, typ := range []schemas.EventType{
		schemas.EventScreenshot, schemas.EventModelResponse,
		schemas.EventActionResult, schemas.EventStatus, schemas.EventError,
	} {
		assert.NoError(t, o.OnEvent(context.Background(), schemas.Event{Type: typ, Content: strings.Repeat("x", 300)}))
	}
}
