// Package nop is the publisher used when no event broker is configured.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/quill/pkg/eventstream"
)

// Publisher accepts events and drops them, counting what it saw.
type Publisher struct {
	published atomic.Int64
	closed    atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnRelayedEvent) error {
	switch {
	case event == nil:
		return eventstream.ErrNilTurnEvent
	case p.closed.Load():
		return eventstream.ErrPublisherClosed
	}

	p.published.Add(1)
	return nil
}

// Published returns how many events were accepted.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
