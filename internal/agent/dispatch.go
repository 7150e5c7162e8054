package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/llmutil"
)

// focusSettle is the short pause between a focusing click and typing, giving
// the page time to attach its input handlers.
const focusSettle = 200 * time.Millisecond

// execute performs one parsed action against the browser and returns the
// textual observation fed back to the model. Browser failures never abort the
// run; they become part of the observation so the model can react.
func (a *Agent) execute(ctx context.Context, action schemas.Action) string {
	result, err := a.dispatch(ctx, action)
	if err != nil {
		a.logger.Error("Action execution failed",
			zap.String("action", string(action.Kind())), zap.Error(err))
		return fmt.Sprintf("Action failed: %v", err)
	}
	return result
}

func (a *Agent) dispatch(ctx context.Context, action schemas.Action) (string, error) {
	switch act := action.(type) {
	case schemas.VisitURLAction:
		if act.URL == "" {
			return "No URL provided.", nil
		}
		if err := a.browser.Goto(ctx, normalizeURLOrSearch(act.URL)); err != nil {
			return "", err
		}
		return fmt.Sprintf("I typed '%s' into the browser address bar.", act.URL), nil

	case schemas.WebSearchAction:
		target := "https://www.bing.com/search?q=" + url.QueryEscape(act.Query)
		if err := a.browser.Goto(ctx, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("I typed '%s' into the browser search bar.", act.Query), nil

	case schemas.LeftClickAction:
		p := a.mapper.ToViewport(act.Coordinate)
		if err := a.browser.Click(ctx, p.X, p.Y); err != nil {
			return "", err
		}
		a.showMarker(ctx, p, "click")
		return fmt.Sprintf("I clicked at coordinates (%.1f, %.1f).", p.X, p.Y), nil

	case schemas.HoverAction:
		p := a.mapper.ToViewport(act.Coordinate)
		if err := a.browser.Hover(ctx, p.X, p.Y); err != nil {
			return "", err
		}
		a.showMarker(ctx, p, "hover")
		return fmt.Sprintf("I moved the cursor to (%.1f, %.1f).", p.X, p.Y), nil

	case schemas.TypeTextAction:
		if act.Coordinate != nil {
			p := a.mapper.ToViewport(*act.Coordinate)
			if err := a.browser.Click(ctx, p.X, p.Y); err != nil {
				return "", err
			}
			a.showMarker(ctx, p, "type")
			if err := llmutil.Sleep(ctx, focusSettle); err != nil {
				return "", err
			}
		}
		if err := a.browser.TypeText(ctx, act.Text, act.PressEnter, act.DeleteExisting); err != nil {
			return "", err
		}
		return fmt.Sprintf("I typed '%s'.", act.Text), nil

	case schemas.ScrollAction:
		direction := "down"
		var err error
		switch {
		case act.Pixels > 0:
			direction = "up"
			err = a.browser.PageUp(ctx)
		case act.Pixels < 0:
			err = a.browser.PageDown(ctx)
		default:
			err = a.browser.Scroll(ctx, act.Pixels)
		}
		if err != nil {
			return "", err
		}
		if pos, perr := a.browser.GetScrollPosition(ctx); perr == nil {
			a.watch.Record(direction, pos)
		} else {
			a.logger.Warn("Failed to read scroll position", zap.Error(perr))
		}
		return fmt.Sprintf("I scrolled %s one page in the browser.", direction), nil

	case schemas.KeyAction:
		if len(act.Keys) == 0 {
			return "No keys provided.", nil
		}
		for _, key := range act.Keys {
			if err := a.browser.PressKey(ctx, key); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("I pressed keys: %s.", strings.Join(act.Keys, ", ")), nil

	case schemas.HistoryBackAction:
		if err := a.browser.GoBack(ctx); err != nil {
			return "", err
		}
		return "I went back to the previous page.", nil

	case schemas.WaitAction:
		seconds := act.Seconds
		if seconds <= 0 {
			seconds = 1
		}
		if err := llmutil.Sleep(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
			return "", err
		}
		return fmt.Sprintf("I waited for %g seconds.", seconds), nil

	case schemas.MemorizeFactAction:
		if act.Fact != "" {
			a.addFact(act.Fact)
		}
		return "I paused to memorize a fact.", nil

	case schemas.UnknownAction:
		return fmt.Sprintf("Unknown action: %s", act.Name), nil

	default:
		// Terminate is consumed by the run loop before dispatch.
		return fmt.Sprintf("Unknown action: %s", action.Kind()), nil
	}
}

// showMarker flashes a click marker when the controller supports annotations
// and the feature is enabled. Cosmetic only; failures are logged and dropped.
func (a *Agent) showMarker(ctx context.Context, p schemas.Point, label string) {
	if !a.showClickMarkers || a.annotator == nil {
		return
	}
	if err := a.annotator.ShowClickMarker(ctx, p.X, p.Y, label); err != nil {
		a.logger.Debug("Click marker failed", zap.Error(err))
	}
}

// normalizeURLOrSearch returns a navigable URL for the model's input:
// scheme-bearing input passes through, input with spaces becomes a web
// search, anything else gets an https prefix.
func normalizeURLOrSearch(raw string) string {
	for _, scheme := range []string{"https://", "http://", "file://", "about:"} {
		if strings.HasPrefix(raw, scheme) {
			return raw
		}
	}
	if strings.Contains(raw, " ") {
		return "https://www.bing.com/search?q=" + url.QueryEscape(raw)
	}
	return "https://" + raw
}
