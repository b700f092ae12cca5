package merkle

import "github.com/papercomputeco/quill/pkg/llm"

// BucketTypeMessage is the bucket type of a chat message node.
const BucketTypeMessage = "message"

// Bucket represents the hashable content stored in a Merkle DAG node.
type Bucket struct {
	// Type identifies the kind of content (e.g., "message")
	Type string `json:"type"`

	// Role indicates who produced this message ("user", "assistant")
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Model identifies the model that served the turn.
	Model string `json:"model"`

	// Language is the target-language hint sent with the turn.
	Language string `json:"language,omitempty"`
}

// MessageBucket builds the bucket for a chat message.
func MessageBucket(msg llm.Message, model, language string) Bucket {
	return Bucket{
		Type:     BucketTypeMessage,
		Role:     msg.Role,
		Content:  msg.Content,
		Model:    model,
		Language: language,
	}
}
