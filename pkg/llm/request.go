package llm

// ChatRequest is the body the IDE posts to the relay's chat stream endpoint.
type ChatRequest struct {
	// Conversation messages, oldest first.
	Messages []Message `json:"messages" validate:"required,min=1,dive"`

	// Images is positionally aligned with Messages: Images[i], when non-nil,
	// is attached to Messages[i]. Shorter slices are allowed.
	Images []*string `json:"images,omitempty"`

	// Language is the target programming language hint injected into the
	// system persona (e.g. "typescript"). Optional.
	Language string `json:"language,omitempty"`
}

// ImageFor returns the image attached to the i-th message, or "".
func (r *ChatRequest) ImageFor(i int) string {
	if i < 0 || i >= len(r.Images) || r.Images[i] == nil {
		return ""
	}
	return *r.Images[i]
}

// CompletionRequest is the request body sent to the upstream gateway.
type CompletionRequest struct {
	Model    string            `json:"model"`
	Messages []UpstreamMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}
