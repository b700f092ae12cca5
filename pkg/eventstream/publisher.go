// Package eventstream publishes relayed-turn events to downstream consumers.
//
// The relay worker pool publishes one TurnRelayedEvent after each turn is
// stored. Implementations live in subpackages: nop when no broker is
// configured and kafka otherwise.
package eventstream

import "context"

// Publisher delivers turn events. PublishTurn must be safe for concurrent
// use; after Close it returns ErrPublisherClosed.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnRelayedEvent) error
	Close() error
}
