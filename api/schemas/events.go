package schemas

import "time"

// EventType discriminates the progress events the agent emits to observers.
type EventType string

const (
	EventScreenshot    EventType = "screenshot"
	EventModelResponse EventType = "model_response"
	EventActionResult  EventType = "action_result"
	EventStatus        EventType = "status"
	EventError         EventType = "error"
)

// Event is a discriminated progress notification. Only the fields relevant
// to the Type are populated. Events are delivered in causal order and
// at-least-once within a single run.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`

	// Screenshot holds PNG bytes for EventScreenshot.
	Screenshot []byte `json:"screenshot,omitempty"`
	// Content holds the raw model response for EventModelResponse, the
	// textual action result for EventActionResult, and the status reason
	// for EventStatus.
	Content string `json:"content,omitempty"`
	// Action is the parsed action for EventActionResult.
	Action Action `json:"action,omitempty"`
	// Err is populated for EventError.
	Err error `json:"-"`
}
