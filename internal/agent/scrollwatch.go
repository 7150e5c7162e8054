package agent

import (
	"time"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// loopWarning is injected into the context text when the model oscillates
// between scroll directions instead of making progress.
const loopWarning = "Loop warning: You have been scrolling up/down repeatedly. Avoid more scrolling; prefer clicking a result or using the search bar."

// scrollAdviceWindow and scrollAdviceThreshold bound the oscillation check:
// only the most recent window is inspected, and at least threshold samples
// must be present before the advisory fires.
const (
	scrollAdviceWindow    = 6
	scrollAdviceThreshold = 4
)

type scrollSample struct {
	direction    string
	offset       float64
	scrollHeight float64
	at           time.Time
}

// scrollWatch accumulates one sample per executed scroll action and derives
// loop advice from the recent direction pattern. The run loop is its only
// user; no locking.
type scrollWatch struct {
	samples []scrollSample
}

// Record appends a sample for a scroll that just executed.
func (w *scrollWatch) Record(direction string, pos schemas.ScrollPosition) {
	w.samples = append(w.samples, scrollSample{
		direction:    direction,
		offset:       pos.Y,
		scrollHeight: pos.ScrollHeight,
		at:           time.Now(),
	})
}

// Last returns the most recent sample, if any.
func (w *scrollWatch) Last() (scrollSample, bool) {
	if len(w.samples) == 0 {
		return scrollSample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Advice returns the loop warning when the recent window holds at least
// scrollAdviceThreshold samples containing both directions, otherwise "".
func (w *scrollWatch) Advice() string {
	recent := w.samples
	if len(recent) > scrollAdviceWindow {
		recent = recent[len(recent)-scrollAdviceWindow:]
	}
	if len(recent) < scrollAdviceThreshold {
		return ""
	}

	var up, down bool
	for _, s := range recent {
		switch s.direction {
		case "up":
			up = true
		case "down":
			down = true
		}
	}
	if up && down {
		return loopWarning
	}
	return ""
}
