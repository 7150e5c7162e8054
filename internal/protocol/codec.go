// Package protocol parses the delimited tool-call block out of a raw model
// response and decodes it into the closed action union.
package protocol

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/llmutil"
)

// Tool-call wire markers. The model is instructed to emit exactly one block:
//
//	<tool_call>
//	{"name": "computer_use", "arguments": { ... }}
//	</tool_call>
const (
	OpenDelimiter  = "<tool_call>"
	CloseDelimiter = "</tool_call>"
	ToolName       = "computer_use"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// toolCall is the envelope inside the delimiters.
type toolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Codec parses model responses. Parse failures are soft: they are logged and
// reported as "no action", never raised.
type Codec struct {
	logger *zap.Logger
}

// NewCodec creates a codec. A nil logger falls back to a no-op.
func NewCodec(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{logger: logger.Named("protocol")}
}

// Parse locates the tool-call block in a raw response and decodes it. The
// second return value is false when no action could be extracted; the
// orchestration loop ends the run in that case.
func (c *Codec) Parse(response string) (schemas.Action, bool) {
	start := strings.Index(response, OpenDelimiter)
	if start < 0 {
		return nil, false
	}
	body := response[start+len(OpenDelimiter):]

	// Generation is typically stopped on the closing delimiter, so its
	// absence is expected: the remainder of the text is the block.
	if end := strings.Index(body, CloseDelimiter); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)

	var call toolCall
	if err := json.UnmarshalFromString(body, &call); err != nil {
		c.logger.Error("Failed to parse tool call JSON",
			zap.Error(err),
			zap.String("block", llmutil.Truncate(body, 500)))
		return nil, false
	}
	if call.Name != ToolName {
		c.logger.Warn("Tool call names an unexpected tool",
			zap.String("name", call.Name))
		return nil, false
	}

	return decodeAction(call.Arguments), true
}

// decodeAction turns the raw argument map into a typed action, normalizing
// legacy aliases into canonical kinds. Missing required fields are carried
// into the variant as zero values; the dispatcher answers them with textual
// failures rather than errors.
func decodeAction(args map[string]interface{}) schemas.Action {
	name, _ := args["action"].(string)
	switch normalizeAlias(name) {
	case schemas.ActionLeftClick:
		return schemas.LeftClickAction{Coordinate: pointArg(args, "coordinate")}
	case schemas.ActionHover:
		return schemas.HoverAction{Coordinate: pointArg(args, "coordinate")}
	case schemas.ActionTypeText:
		a := schemas.TypeTextAction{
			Text:           stringArg(args, "text"),
			PressEnter:     boolArg(args, "press_enter"),
			DeleteExisting: boolArg(args, "delete_existing_text"),
		}
		if _, ok := args["coordinate"]; ok {
			p := pointArg(args, "coordinate")
			a.Coordinate = &p
		}
		return a
	case schemas.ActionScroll:
		return schemas.ScrollAction{Pixels: int(floatArg(args, "pixels", 0))}
	case schemas.ActionKey:
		return schemas.KeyAction{Keys: stringSliceArg(args, "keys")}
	case schemas.ActionVisitURL:
		return schemas.VisitURLAction{URL: stringArg(args, "url")}
	case schemas.ActionWebSearch:
		return schemas.WebSearchAction{Query: stringArg(args, "query")}
	case schemas.ActionHistoryBack:
		return schemas.HistoryBackAction{}
	case schemas.ActionWait:
		secs := floatArg(args, "time", 0)
		if secs == 0 {
			secs = floatArg(args, "duration", 0)
		}
		if secs == 0 {
			secs = 1
		}
		return schemas.WaitAction{Seconds: secs}
	case schemas.ActionMemorizeFact:
		return schemas.MemorizeFactAction{Fact: stringArg(args, "fact")}
	case schemas.ActionTerminate:
		status := schemas.TerminateStatus(stringArg(args, "status"))
		if status != schemas.TerminateFailure {
			status = schemas.TerminateSuccess
		}
		return schemas.TerminateAction{Status: status}
	default:
		return schemas.UnknownAction{Name: name}
	}
}

// normalizeAlias maps legacy action names onto canonical kinds.
func normalizeAlias(name string) schemas.ActionKind {
	switch name {
	case "click":
		return schemas.ActionLeftClick
	case "input_text":
		return schemas.ActionTypeText
	case "mouse_move":
		return schemas.ActionHover
	case "keypress":
		return schemas.ActionKey
	default:
		return schemas.ActionKind(name)
	}
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func floatArg(args map[string]interface{}, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// pointArg reads a [x, y] array, defaulting missing entries to zero.
func pointArg(args map[string]interface{}, key string) schemas.Point {
	raw, ok := args[key].([]interface{})
	if !ok || len(raw) < 2 {
		return schemas.Point{}
	}
	toF := func(v interface{}) float64 {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		default:
			return 0
		}
	}
	return schemas.Point{X: toF(raw[0]), Y: toF(raw[1])}
}
