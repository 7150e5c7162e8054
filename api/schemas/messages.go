package schemas

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageAttachment is an encoded image carried by a user turn.
type ImageAttachment struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	// Width and Height are the dimensions of the attached (already
	// normalized) image, recorded so the prompt and the coordinate mapper
	// agree on the space the model sees.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Message is one ordered turn in the multimodal conversation. User turns may
// carry at most one image plus text; system and assistant turns are text only.
type Message struct {
	Role  Role             `json:"role"`
	Text  string           `json:"text"`
	Image *ImageAttachment `json:"image,omitempty"`
}

// HasImage reports whether the turn carries an image. The context window
// manager prunes on this.
func (m Message) HasImage() bool { return m.Image != nil }

// SystemMessage builds a system turn.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

// UserMessage builds a user turn with an optional image.
func UserMessage(text string, image *ImageAttachment) Message {
	return Message{Role: RoleUser, Text: text, Image: image}
}
