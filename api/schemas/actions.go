package schemas

// ActionKind identifies one of the closed set of browser actions the model
// can request through the computer_use tool.
type ActionKind string

const (
	ActionLeftClick    ActionKind = "left_click"
	ActionHover        ActionKind = "hover"
	ActionTypeText     ActionKind = "type"
	ActionScroll       ActionKind = "scroll"
	ActionKey          ActionKind = "key"
	ActionVisitURL     ActionKind = "visit_url"
	ActionWebSearch    ActionKind = "web_search"
	ActionHistoryBack  ActionKind = "history_back"
	ActionWait         ActionKind = "wait"
	ActionMemorizeFact ActionKind = "pause_and_memorize_fact"
	ActionTerminate    ActionKind = "terminate"
	ActionUnknown      ActionKind = "unknown"
)

// TerminateStatus is the final status the model attaches to a terminate action.
type TerminateStatus string

const (
	TerminateSuccess TerminateStatus = "success"
	TerminateFailure TerminateStatus = "failure"
)

// Point is a coordinate pair. Depending on context it is expressed either in
// the model's normalized image space or in viewport device pixels; the
// coordinate mapper converts between the two.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action is the closed tagged union over everything the model can ask the
// browser to do. Each variant owns exactly the fields relevant to it and is
// dispatched via exhaustive type switching. The sealed marker method keeps
// the set closed to this package.
type Action interface {
	Kind() ActionKind
	isAction()
}

// LeftClickAction clicks the left mouse button at a coordinate.
type LeftClickAction struct {
	Coordinate Point `json:"coordinate"`
}

// HoverAction moves the cursor to a coordinate without clicking.
type HoverAction struct {
	Coordinate Point `json:"coordinate"`
}

// TypeTextAction types text, optionally clicking a coordinate first to focus.
type TypeTextAction struct {
	Text           string `json:"text"`
	Coordinate     *Point `json:"coordinate,omitempty"`
	PressEnter     bool   `json:"press_enter,omitempty"`
	DeleteExisting bool   `json:"delete_existing_text,omitempty"`
}

// ScrollAction scrolls the page. Positive pixels means up, negative means
// down; the sign is the load-bearing part of the contract.
type ScrollAction struct {
	Pixels int `json:"pixels"`
}

// KeyAction presses a sequence of named keys in order.
type KeyAction struct {
	Keys []string `json:"keys"`
}

// VisitURLAction navigates to a URL (or a search fallback for non-URL input).
type VisitURLAction struct {
	URL string `json:"url"`
}

// WebSearchAction performs a web search for the query.
type WebSearchAction struct {
	Query string `json:"query"`
}

// HistoryBackAction goes back one entry in browser history.
type HistoryBackAction struct{}

// WaitAction pauses for a number of seconds.
type WaitAction struct {
	Seconds float64 `json:"seconds"`
}

// MemorizeFactAction records a free-text fact for the remainder of the run.
type MemorizeFactAction struct {
	Fact string `json:"fact"`
}

// TerminateAction ends the run with the requested status.
type TerminateAction struct {
	Status TerminateStatus `json:"status"`
}

// UnknownAction carries an action name the codec did not recognize. It is
// dispatched like any other variant and produces a textual failure
// observation rather than an error.
type UnknownAction struct {
	Name string `json:"name"`
}

func (LeftClickAction) Kind() ActionKind    { return ActionLeftClick }
func (HoverAction) Kind() ActionKind        { return ActionHover }
func (TypeTextAction) Kind() ActionKind     { return ActionTypeText }
func (ScrollAction) Kind() ActionKind       { return ActionScroll }
func (KeyAction) Kind() ActionKind          { return ActionKey }
func (VisitURLAction) Kind() ActionKind     { return ActionVisitURL }
func (WebSearchAction) Kind() ActionKind    { return ActionWebSearch }
func (HistoryBackAction) Kind() ActionKind  { return ActionHistoryBack }
func (WaitAction) Kind() ActionKind         { return ActionWait }
func (MemorizeFactAction) Kind() ActionKind { return ActionMemorizeFact }
func (TerminateAction) Kind() ActionKind    { return ActionTerminate }
func (UnknownAction) Kind() ActionKind      { return ActionUnknown }

func (LeftClickAction) isAction()    {}
func (HoverAction) isAction()        {}
func (TypeTextAction) isAction()     {}
func (ScrollAction) isAction()       {}
func (KeyAction) isAction()          {}
func (VisitURLAction) isAction()     {}
func (WebSearchAction) isAction()    {}
func (HistoryBackAction) isAction()  {}
func (WaitAction) isAction()         {}
func (MemorizeFactAction) isAction() {}
func (TerminateAction) isAction()    {}
func (UnknownAction) isAction()      {}
