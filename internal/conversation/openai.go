package conversation

import (
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// ToOpenAI converts conversation turns to the chat completion wire format.
// User turns carrying an image become multi-part content with the image
// first as a base64 data URL, matching what OpenAI-compatible vision
// endpoints expect.
func ToOpenAI(messages []schemas.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, toOpenAIMessage(m))
	}
	return out
}

func toOpenAIMessage(m schemas.Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	switch m.Role {
	case schemas.RoleSystem:
		role = openai.ChatMessageRoleSystem
	case schemas.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	}

	if m.Image == nil {
		return openai.ChatCompletionMessage{Role: role, Content: m.Text}
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		m.Image.MimeType, base64.StdEncoding.EncodeToString(m.Image.Data))

	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailAuto,
			},
		},
	}
	if m.Text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Text,
		})
	}

	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}
