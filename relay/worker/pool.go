// Package worker provides an asynchronous worker pool that persists relayed
// conversation turns into the transcript DAG and publishes a turn event for
// each one.
//
// The pool decouples storage from the relay's streaming hot path so that a
// slow or failing store never delays or alters the bytes sent to the client.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
)

var (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 5 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Turn is the relayed request and the assistant text streamed back.
	Turn llm.ConversationTurn

	// Path is the relay route that served the turn.
	Path string

	StartedAt   time.Time
	CompletedAt time.Time

	// DroppedFrames counts malformed frames the relay's decoder skipped.
	DroppedFrames int64
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting nodes.
	Driver storage.Driver

	// Publisher receives a TurnRelayedEvent after each stored turn.
	// Optional.
	Publisher eventstream.Publisher

	// Project tags every stored node.
	Project string

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single event publish (defaults to 5s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"model", job.Turn.Model,
			"messages", len(job.Turn.Messages),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"model", job.Turn.Model,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the conversation turn and publishes its event.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	dag, err := p.storeConversationTurn(ctx, job)
	if err != nil {
		p.logger.Error("async DAG storage failed",
			"model", job.Turn.Model,
			"error", err,
		)
		return
	}

	p.logger.Info("conversation stored",
		"head", dag.HeadHash,
		"new_nodes", len(dag.NewNodeHashes),
		"complete", job.Turn.Complete,
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewTurnRelayedEvent(
		eventstream.EventSource{
			Project:  p.config.Project,
			Model:    job.Turn.Model,
			Language: job.Turn.Language,
		},
		eventstream.TurnRequestMeta{
			Path:          job.Path,
			StartedAt:     job.StartedAt,
			CompletedAt:   job.CompletedAt,
			DurationMs:    job.CompletedAt.Sub(job.StartedAt).Milliseconds(),
			DroppedFrames: job.DroppedFrames,
		},
		dag,
		job.Turn,
	)

	pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishTurn(pubCtx, event); err != nil {
		p.logger.Warn("failed to publish turn event",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("turn event published", "event_id", event.EventID)
}

// storeConversationTurn stores the caller's messages followed by the
// assistant reply as one chain in the merkle dag. System messages are the
// relay's persona, not part of the transcript, and are skipped.
func (p *Pool) storeConversationTurn(ctx context.Context, job Job) (eventstream.TurnDAGMeta, error) {
	var (
		dag    eventstream.TurnDAGMeta
		parent *merkle.Node
	)

	put := func(node *merkle.Node) error {
		isNew, err := p.config.Driver.Put(ctx, node)
		if err != nil {
			return err
		}

		p.logger.Debug("stored message in DAG",
			"hash", node.Hash,
			"role", node.Bucket.Role,
			"is_new", isNew,
		)

		if parent == nil {
			dag.RootHash = node.Hash
		}
		dag.TurnNodeHashes = append(dag.TurnNodeHashes, node.Hash)
		if isNew {
			dag.NewNodeHashes = append(dag.NewNodeHashes, node.Hash)
		}
		parent = node
		return nil
	}

	meta := merkle.NodeMeta{Project: p.config.Project}
	for _, msg := range job.Turn.Messages {
		if msg.Role == llm.RoleSystem {
			continue
		}

		node := merkle.NewNode(merkle.MessageBucket(msg, job.Turn.Model, job.Turn.Language), parent, meta)
		if err := put(node); err != nil {
			return dag, fmt.Errorf("storing message node: %w", err)
		}
	}

	reply := llm.NewTextMessage(llm.RoleAssistant, job.Turn.Response)
	replyNode := merkle.NewNode(
		merkle.MessageBucket(reply, job.Turn.Model, job.Turn.Language),
		parent,
		merkle.NodeMeta{Project: p.config.Project, Partial: !job.Turn.Complete},
	)
	if err := put(replyNode); err != nil {
		return dag, fmt.Errorf("storing response node: %w", err)
	}

	dag.HeadHash = replyNode.Hash
	return dag, nil
}
