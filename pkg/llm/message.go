package llm

// Conversation roles understood by the chat-completion gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single caller-supplied chat message as the IDE sends it:
// a role and a plain text body.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and text content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// ContentPart is one element of a multimodal upstream message body.
// Type is "text" or "image_url".
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// UpstreamMessage is a message in the gateway's wire format.
// Content is either a string or a []ContentPart when images are attached.
type UpstreamMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ToUpstream converts the message into the gateway wire format, attaching the
// given image (a URL or data URI) as a second content part when non-empty.
func (m Message) ToUpstream(image string) UpstreamMessage {
	if image == "" {
		return UpstreamMessage{Role: m.Role, Content: m.Content}
	}

	return UpstreamMessage{
		Role: m.Role,
		Content: []ContentPart{
			{Type: "text", Text: m.Content},
			{Type: "image_url", ImageURL: &ImageURL{URL: image}},
		},
	}
}
