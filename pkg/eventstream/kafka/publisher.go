// Package kafka publishes turn events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/quill/pkg/eventstream"
)

const defaultBatchTimeout = 10 * time.Millisecond

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// BatchTimeout bounds how long the writer waits to fill a batch.
	// Defaults to 10ms so single turns are not held back.
	BatchTimeout time.Duration
}

// Validate checks the config has enough to reach a topic.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return errors.New("kafka publisher requires a topic")
	}
	return nil
}

// Publisher writes TurnRelayedEvent payloads as JSON messages keyed by the
// conversation root hash, so turns of one conversation share a partition.
type Publisher struct {
	writer Writer
	topic  string
	closed atomic.Bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithWriter replaces the underlying kafka writer.
func WithWriter(w Writer) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Publisher{topic: cfg.Topic}
	for _, opt := range opts {
		opt(p)
	}

	if p.writer == nil {
		batchTimeout := cfg.BatchTimeout
		if batchTimeout <= 0 {
			batchTimeout = defaultBatchTimeout
		}

		p.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		}
	}

	return p, nil
}

// PublishTurn writes a single event.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnRelayedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.DAG.RootHash),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer. Later calls are
// no-ops.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
