// Package agent drives the observe-decide-act loop: capture a frame, show it
// to the model, parse the returned tool call and execute it against the
// browser, until the model terminates or the round budget runs out.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
	"github.com/xkilldash9x/webpilot-cli/internal/conversation"
	"github.com/xkilldash9x/webpilot-cli/internal/gateway"
	"github.com/xkilldash9x/webpilot-cli/internal/llmutil"
	"github.com/xkilldash9x/webpilot-cli/internal/prompts"
	"github.com/xkilldash9x/webpilot-cli/internal/protocol"
	"github.com/xkilldash9x/webpilot-cli/internal/vision"
)

// Run-ending reasons. Terminate actions end the run with the model's own
// status string instead.
const (
	ReasonStopped   = "stopped"
	ReasonNoAction  = "no_action"
	ReasonMaxRounds = "max_rounds_exhausted"
)

// RunResult summarizes a finished run.
type RunResult struct {
	// Reason is one of the Reason* constants or, for model-initiated
	// termination, the terminate status ("success" or "failure").
	Reason string
	// Summary is the human-readable closing line, including memorized facts
	// for terminated runs.
	Summary string
	// Rounds is the number of rounds that started.
	Rounds int
	// Facts holds everything the model memorized, in order.
	Facts []string
}

// Agent owns one browsing run. Construct with New, drive with Run; a second
// Run on the same Agent is not supported.
type Agent struct {
	browser   schemas.BrowserController
	annotator schemas.Annotator
	model     schemas.ModelCaller
	codec     *protocol.Codec
	observer  schemas.Observer
	mapper    *vision.Mapper
	history   *conversation.History
	watch     *scrollWatch
	logger    *zap.Logger

	maxRounds         int
	maxImages         int
	settleDelay       time.Duration
	saveScreenshots   bool
	screenshotsFolder string
	showOverlay       bool
	showClickMarkers  bool

	runID     string
	actionLog []string

	mu       sync.Mutex
	stopping bool
	facts    []string
}

// New wires an agent from its collaborators. A nil observer disables event
// delivery; controllers that also implement schemas.Annotator get the
// cosmetic overlay and click markers when configured.
func New(cfg *config.Config, browser schemas.BrowserController, model schemas.ModelCaller, observer schemas.Observer, logger *zap.Logger) *Agent {
	annotator, _ := browser.(schemas.Annotator)
	return &Agent{
		browser:   browser,
		annotator: annotator,
		model:     model,
		codec:     protocol.NewCodec(logger),
		observer:  observer,
		mapper:    vision.NewMapper(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight),
		history:   conversation.NewHistory(),
		watch:     &scrollWatch{},
		logger:    logger.Named("agent"),

		maxRounds:         cfg.Agent.MaxRounds,
		maxImages:         cfg.Agent.MaxImages,
		settleDelay:       cfg.Agent.SettleDelay,
		saveScreenshots:   cfg.Agent.SaveScreenshots,
		screenshotsFolder: cfg.Agent.ScreenshotsFolder,
		showOverlay:       cfg.Browser.ShowOverlay,
		showClickMarkers:  cfg.Browser.ShowClickMarkers,

		runID: uuid.NewString(),
	}
}

// Stop requests cooperative cancellation. The current round finishes; the
// loop observes the flag at the top of the next round.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopping = true
}

func (a *Agent) stopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopping
}

func (a *Agent) addFact(fact string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.facts = append(a.facts, fact)
}

// Facts returns a snapshot of the facts memorized so far.
func (a *Agent) Facts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.facts...)
}

// Run executes the task until the model terminates, no action can be parsed,
// a stop is requested or the round budget runs out. A model call that fails
// after the gateway's retries is the main error path; everything else ends
// the run with a populated RunResult.
func (a *Agent) Run(ctx context.Context, task string) (*RunResult, error) {
	a.logger.Info("Starting run", zap.String("run_id", a.runID), zap.String("task", task))

	frame, err := a.captureFrame(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("initial screenshot: %w", err)
	}

	normWidth, normHeight, err := a.normalizedDims(frame)
	if err != nil {
		return nil, err
	}
	systemPrompt := prompts.ComputerUse(normWidth, normHeight)

	rounds := 0
	for round := 1; round <= a.maxRounds; round++ {
		if a.stopRequested() || ctx.Err() != nil {
			a.logger.Info("Run stopped by request", zap.Int("round", round))
			return a.finish(ctx, rounds, ReasonStopped, "Run stopped."), nil
		}
		rounds = round
		a.logger.Info("Round", zap.Int("round", round), zap.Int("max_rounds", a.maxRounds))

		resized, err := vision.ResizeFrame(frame, normWidth, normHeight)
		if err != nil {
			return nil, fmt.Errorf("round %d: resize frame: %w", round, err)
		}
		a.mapper.SetNormalized(normWidth, normHeight)

		a.history.Append(schemas.UserMessage(a.contextText(ctx, task), &schemas.ImageAttachment{
			Data:     resized,
			MimeType: "image/png",
			Width:    normWidth,
			Height:   normHeight,
		}))

		messages := append([]schemas.Message{schemas.SystemMessage(systemPrompt)}, a.history.Prune(a.maxImages)...)
		response, err := a.model.Complete(ctx, messages)
		if err != nil {
			a.emit(ctx, schemas.Event{Type: schemas.EventError, Round: round, Err: err})
			return nil, fmt.Errorf("round %d: model call: %w", round, err)
		}
		a.emit(ctx, schemas.Event{Type: schemas.EventModelResponse, Round: round, Content: response})
		a.updateOverlay(ctx, "[INFO] Model response: "+response)

		action, ok := a.codec.Parse(response)
		if !ok {
			a.logger.Warn("No valid action found in response", zap.Int("round", round))
			return a.finish(ctx, rounds, ReasonNoAction, "Model produced no action."), nil
		}

		if term, isTerm := action.(schemas.TerminateAction); isTerm {
			a.logger.Info("Task terminated", zap.String("status", string(term.Status)))
			return a.finish(ctx, rounds, string(term.Status), a.terminateSummary(term.Status)), nil
		}

		result := a.execute(ctx, action)
		a.emit(ctx, schemas.Event{Type: schemas.EventActionResult, Round: round, Content: result, Action: action})
		a.actionLog = append(a.actionLog, fmt.Sprintf("%d. %s: %s", round, action.Kind(), result))

		if err := llmutil.Sleep(ctx, a.settleDelay); err != nil {
			return a.finish(ctx, rounds, ReasonStopped, "Run stopped."), nil
		}

		frame, err = a.captureFrame(ctx, round)
		if err != nil {
			return nil, fmt.Errorf("round %d: screenshot: %w", round, err)
		}
		a.persistScreenshot(frame, round)

		normWidth, normHeight, err = a.normalizedDims(frame)
		if err != nil {
			return nil, err
		}
		systemPrompt = prompts.ComputerUse(normWidth, normHeight)
	}

	a.logger.Info("Round budget exhausted", zap.Int("rounds", rounds))
	return a.finish(ctx, rounds, ReasonMaxRounds, "Round budget exhausted."), nil
}

// finish emits the closing status event and assembles the result.
func (a *Agent) finish(ctx context.Context, rounds int, reason, summary string) *RunResult {
	a.emit(ctx, schemas.Event{Type: schemas.EventStatus, Round: rounds, Content: reason})
	return &RunResult{
		Reason:  reason,
		Summary: summary,
		Rounds:  rounds,
		Facts:   a.Facts(),
	}
}

func (a *Agent) terminateSummary(status schemas.TerminateStatus) string {
	facts := a.Facts()
	if len(facts) > 0 {
		return fmt.Sprintf("Task completed with status: %s. Memorized facts: %s", status, strings.Join(facts, "; "))
	}
	return fmt.Sprintf("Task completed with status: %s", status)
}

// contextText builds the per-round textual context accompanying the frame:
// the task, the current URL, recent actions, scroll state with loop advice
// and the closing question.
func (a *Agent) contextText(ctx context.Context, task string) string {
	currentURL, err := a.browser.CurrentURL(ctx)
	if err != nil {
		a.logger.Debug("Failed to read current URL", zap.Error(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nCurrent URL: %s", task, currentURL)

	if n := len(a.actionLog); n > 0 {
		recent := a.actionLog
		if n > 3 {
			recent = recent[n-3:]
		}
		b.WriteString("\n\nRecent actions:\n" + strings.Join(recent, "\n"))
	}

	if last, ok := a.watch.Last(); ok {
		sh := last.scrollHeight
		if sh == 0 {
			sh = 1
		}
		fmt.Fprintf(&b, "\n\nScroll position: %.0f/%.0f (%.1f%%).", last.offset, sh, last.offset/sh*100)
		if advice := a.watch.Advice(); advice != "" {
			b.WriteString("\n\n" + advice)
		}
	}

	b.WriteString("\n\nWhat should I do next? If the task is complete, use the 'terminate' action with status 'success'.")
	return b.String()
}

// captureFrame takes a screenshot and delivers it to observers.
func (a *Agent) captureFrame(ctx context.Context, round int) ([]byte, error) {
	frame, err := a.browser.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	a.emit(ctx, schemas.Event{Type: schemas.EventScreenshot, Round: round, Screenshot: frame})
	return frame, nil
}

// normalizedDims computes the model-facing frame dimensions for the current
// capture. Aspect-ratio violations are fatal: the environment is broken.
func (a *Agent) normalizedDims(frame []byte) (width, height int, err error) {
	w, h, err := vision.DecodeSize(frame)
	if err != nil {
		return 0, 0, fmt.Errorf("decode frame: %w", err)
	}
	nh, nw, err := vision.NormalizedSize(h, w)
	if err != nil {
		return 0, 0, err
	}
	return nw, nh, nil
}

func (a *Agent) persistScreenshot(frame []byte, round int) {
	if !a.saveScreenshots || a.screenshotsFolder == "" {
		return
	}
	if err := os.MkdirAll(a.screenshotsFolder, 0o755); err != nil {
		a.logger.Warn("Failed to create screenshots folder", zap.Error(err))
		return
	}
	path := filepath.Join(a.screenshotsFolder, fmt.Sprintf("screenshot%d.png", round))
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		a.logger.Warn("Failed to save screenshot", zap.String("path", path), zap.Error(err))
	}
}

func (a *Agent) updateOverlay(ctx context.Context, text string) {
	if !a.showOverlay || a.annotator == nil {
		return
	}
	if err := a.annotator.UpdateOverlay(ctx, text); err != nil {
		a.logger.Debug("Overlay update failed", zap.Error(err))
	}
}

// emit delivers one event, stamping run identity and time, and waits for the
// observers. Observer failures are logged, never fatal.
func (a *Agent) emit(ctx context.Context, event schemas.Event) {
	if a.observer == nil {
		return
	}
	event.RunID = a.runID
	event.Timestamp = time.Now()
	if err := a.observer.OnEvent(ctx, event); err != nil {
		a.logger.Warn("Observer error", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// DefaultModelCaller builds the production gateway client for the CLI.
func DefaultModelCaller(cfg config.LLMConfig, logger *zap.Logger) schemas.ModelCaller {
	return gateway.New(cfg, gateway.DefaultRetryPolicy(), logger)
}
