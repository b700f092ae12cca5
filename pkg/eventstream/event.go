package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/quill/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRelayed is emitted after a relayed turn is persisted.
	EventTypeTurnRelayed = "quill.turn.relayed"
)

// TurnRelayedEvent is a transport-neutral event payload for a relayed turn.
type TurnRelayedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	RequestMeta   TurnRequestMeta      `json:"request_meta"`
	DAG           TurnDAGMeta          `json:"dag"`
	Turn          llm.ConversationTurn `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	Project  string `json:"project,omitempty"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	Path          string    `json:"path,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
	DroppedFrames int64     `json:"dropped_frames,omitempty"`
}

// TurnDAGMeta captures DAG-specific metadata for the persisted turn.
type TurnDAGMeta struct {
	RootHash       string   `json:"root_hash"`
	HeadHash       string   `json:"head_hash"`
	TurnNodeHashes []string `json:"turn_node_hashes"`
	NewNodeHashes  []string `json:"new_node_hashes,omitempty"`
}

// NewTurnRelayedEvent stamps a turn event with a fresh ID and the current
// schema version.
func NewTurnRelayedEvent(source EventSource, meta TurnRequestMeta, dag TurnDAGMeta, turn llm.ConversationTurn) *TurnRelayedEvent {
	return &TurnRelayedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRelayed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		DAG:           dag,
		Turn:          turn,
	}
}
