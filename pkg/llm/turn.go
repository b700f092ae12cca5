package llm

// ConversationTurn is a relayed request together with the assistant text that
// was streamed back for it. It is what gets persisted in the transcript DAG.
type ConversationTurn struct {
	Model    string    `json:"model"`
	Language string    `json:"language,omitempty"`
	Messages []Message `json:"messages"`
	Response string    `json:"response"`

	// Complete is false when the upstream stream ended without the [DONE]
	// sentinel.
	Complete bool `json:"complete"`
}
