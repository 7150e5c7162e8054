package agent

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/llmutil"
)

// MultiObserver fans one event out to several observers concurrently and
// waits for all of them, so the run loop never outpaces its observers.
type MultiObserver struct {
	observers []schemas.Observer
}

var _ schemas.Observer = (*MultiObserver)(nil)

// NewMultiObserver combines observers into one. Nil entries are dropped.
func NewMultiObserver(observers ...schemas.Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

// OnEvent delivers the event to every observer and returns the first error.
func (m *MultiObserver) OnEvent(ctx context.Context, event schemas.Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, o := range m.observers {
		o := o
		g.Go(func() error {
			return o.OnEvent(ctx, event)
		})
	}
	return g.Wait()
}

// LoggingObserver writes run progress to the application logger. The CLI
// installs it as the default observer.
type LoggingObserver struct {
	logger *zap.Logger
}

var _ schemas.Observer = (*LoggingObserver)(nil)

// NewLoggingObserver builds an observer over the given logger.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger.Named("run")}
}

// OnEvent logs one event at a level matching its type.
func (o *LoggingObserver) OnEvent(_ context.Context, event schemas.Event) error {
	fields := []zap.Field{
		zap.String("run_id", event.RunID),
		zap.Int("round", event.Round),
	}

	switch event.Type {
	case schemas.EventScreenshot:
		o.logger.Debug("Captured screenshot", append(fields, zap.Int("bytes", len(event.Screenshot)))...)
	case schemas.EventModelResponse:
		o.logger.Info("Model response", append(fields, zap.String("response", llmutil.Truncate(event.Content, 200)))...)
	case schemas.EventActionResult:
		kind := schemas.ActionUnknown
		if event.Action != nil {
			kind = event.Action.Kind()
		}
		o.logger.Info("Action executed",
			append(fields, zap.String("action", string(kind)), zap.String("result", event.Content))...)
	case schemas.EventStatus:
		o.logger.Info("Run status", append(fields, zap.String("reason", event.Content))...)
	case schemas.EventError:
		o.logger.Error("Run error", append(fields, zap.Error(event.Err))...)
	}
	return nil
}
