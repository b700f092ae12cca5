package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnRelayedEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnRelayedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) Events() []*eventstream.TurnRelayedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.TurnRelayedEvent(nil), r.events...)
}

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(pub eventstream.Publisher) (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: pub,
		Project:   "quill",
		// A single worker keeps multi-turn jobs ordered.
		NumWorkers: 1,
		Logger:     logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

func turn(response string, complete bool, msgs ...llm.Message) llm.ConversationTurn {
	return llm.ConversationTurn{
		Model:    "test-model",
		Language: "go",
		Messages: msgs,
		Response: response,
		Complete: complete,
	}
}

var (
	persona  = llm.NewTextMessage(llm.RoleSystem, "You are a coding assistant.")
	question = llm.NewTextMessage(llm.RoleUser, "What is 2+2?")
	answer   = llm.NewTextMessage(llm.RoleAssistant, "2+2 equals 4.")
	followUp = llm.NewTextMessage(llm.RoleUser, "And what is 3+3?")
)

var _ = Describe("Worker Pool", func() {
	var (
		wp     *Pool
		driver *inmemory.Driver
		pub    *recordingPublisher
		ctx    context.Context
	)

	BeforeEach(func() {
		pub = &recordingPublisher{}
		wp, driver = newTestPool(pub)
		ctx = context.Background()
	})

	It("requires a storage driver", func() {
		wp.Close()
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Turn: turn("hi", true, question)})).To(BeTrue())
			wp.Close()
		})
	})

	Describe("Multi-Turn Conversation Storage", func() {
		Context("after turn 1 (user asks a question)", func() {
			BeforeEach(func() {
				wp.Enqueue(Job{Turn: turn(answer.Content, true, persona, question)})
				// Drain the worker pool to ensure storage completes before assertions
				wp.Close()
			})

			It("skips the system persona", func() {
				leaves, err := driver.Leaves(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(leaves).To(HaveLen(1))

				ancestry, err := driver.Ancestry(ctx, leaves[0].Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(ancestry).To(HaveLen(2))
				Expect(ancestry[0].Bucket.Role).To(Equal(llm.RoleAssistant))
				Expect(ancestry[1].Bucket.Role).To(Equal(llm.RoleUser))
			})

			It("tags nodes with the project and language", func() {
				nodes, err := driver.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				for _, n := range nodes {
					Expect(n.Project).To(Equal("quill"))
					Expect(n.Bucket.Language).To(Equal("go"))
					Expect(n.Partial).To(BeFalse())
				}
			})

			It("publishes one turn event describing the chain", func() {
				events := pub.Events()
				Expect(events).To(HaveLen(1))

				event := events[0]
				Expect(event.EventType).To(Equal(eventstream.EventTypeTurnRelayed))
				Expect(event.Source.Project).To(Equal("quill"))
				Expect(event.DAG.TurnNodeHashes).To(HaveLen(2))
				Expect(event.DAG.NewNodeHashes).To(HaveLen(2))

				leaves, _ := driver.Leaves(ctx)
				roots, _ := driver.Roots(ctx)
				Expect(event.DAG.HeadHash).To(Equal(leaves[0].Hash))
				Expect(event.DAG.RootHash).To(Equal(roots[0].Hash))
			})
		})

		Context("multi-turn conversation with replayed messages", func() {
			BeforeEach(func() {
				wp.Enqueue(Job{Turn: turn(answer.Content, true, persona, question)})
				wp.Enqueue(Job{Turn: turn("3+3 equals 6.", true, persona, question, answer, followUp)})
				wp.Close()
			})

			It("orders the full chain from newest to oldest", func() {
				leaves, err := driver.Leaves(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(leaves).To(HaveLen(1))

				ancestry, err := driver.Ancestry(ctx, leaves[0].Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(ancestry).To(HaveLen(4))

				Expect(ancestry[0].Bucket.Content).To(Equal("3+3 equals 6."))
				Expect(ancestry[1].Bucket.Content).To(Equal("And what is 3+3?"))
				Expect(ancestry[2].Bucket.Content).To(Equal("2+2 equals 4."))
				Expect(ancestry[3].Bucket.Content).To(Equal("What is 2+2?"))
			})

			It("reuses the original assistant response from turn 1 (same hash via dedup)", func() {
				Expect(driver.Count()).To(Equal(4))

				events := pub.Events()
				Expect(events).To(HaveLen(2))
				Expect(events[1].DAG.TurnNodeHashes).To(HaveLen(4))
				Expect(events[1].DAG.NewNodeHashes).To(HaveLen(2))
				Expect(events[1].DAG.RootHash).To(Equal(events[0].DAG.RootHash))
			})
		})
	})

	Context("when the stream ended without the completion sentinel", func() {
		It("marks the reply node partial", func() {
			wp.Enqueue(Job{Turn: turn("half an ans", false, question)})
			wp.Close()

			leaves, err := driver.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(leaves).To(HaveLen(1))
			Expect(leaves[0].Partial).To(BeTrue())
		})
	})

	It("records request timing on the event", func() {
		started := time.Now().Add(-1500 * time.Millisecond)
		wp.Enqueue(Job{
			Turn:          turn("ok", true, question),
			Path:          "/api/chat/stream",
			StartedAt:     started,
			CompletedAt:   started.Add(1500 * time.Millisecond),
			DroppedFrames: 2,
		})
		wp.Close()

		events := pub.Events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].RequestMeta.Path).To(Equal("/api/chat/stream"))
		Expect(events[0].RequestMeta.DurationMs).To(Equal(int64(1500)))
		Expect(events[0].RequestMeta.DroppedFrames).To(Equal(int64(2)))
	})

	It("still stores the turn when publishing fails", func() {
		pub.err = errors.New("broker down")
		wp.Enqueue(Job{Turn: turn("ok", true, question)})
		wp.Close()

		Expect(driver.Count()).To(Equal(2))
		Expect(pub.Events()).To(BeEmpty())
	})
})
