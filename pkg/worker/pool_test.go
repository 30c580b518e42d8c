package worker_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/bridge"
	"github.com/meshmindco/meshmind/pkg/eventstream"
	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/memstore"
	"github.com/meshmindco/meshmind/pkg/llm"
	"github.com/meshmindco/meshmind/pkg/llm/backend"
	"github.com/meshmindco/meshmind/pkg/llm/router"
	"github.com/meshmindco/meshmind/pkg/session"
	"github.com/meshmindco/meshmind/pkg/worker"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []eventstream.Event
}

func (p *capturePublisher) Publish(_ context.Context, event eventstream.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) all() []eventstream.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]eventstream.Event, len(p.events))
	copy(events, p.events)
	return events
}

// stubBackend satisfies llm.Backend without any network behavior.
type stubBackend struct{}

func (stubBackend) Complete(_ context.Context, _ []llm.Message) (string, error) {
	return "ok", nil
}

func (stubBackend) CompleteStreaming(_ context.Context, _ []llm.Message, onChunk func(string)) error {
	onChunk("ok")
	return nil
}

func (stubBackend) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

func (stubBackend) Name() string { return "stub" }
func (stubBackend) Close() error { return nil }

var _ = Describe("Pool", func() {
	var (
		ctx       context.Context
		store     *memstore.Store
		manager   *session.Manager
		publisher *capturePublisher
		pool      *worker.Pool
		sessionID string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memstore.New()
		publisher = &capturePublisher{}

		manager = session.NewManager(session.Config{
			Store: store,
			Factory: func(_ backend.ClientConfig) (llm.Backend, error) {
				return stubBackend{}, nil
			},
		})
		manager.RegisterProvider("stub", session.ProviderConfig{
			Profile: router.CapabilityProfile{
				SupportsChat:     true,
				MaxContextLength: 8192,
			},
		})

		var err error
		sessionID, err = manager.CreatePersistentSession(ctx, "bg", "stub", "m1")
		Expect(err).NotTo(HaveOccurred())

		pool, err = worker.NewPool(&worker.Config{
			Manager:   manager,
			Bridge:    bridge.New(bridge.Config{Store: store}),
			Publisher: publisher,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewPool", func() {
		It("requires a session manager", func() {
			_, err := worker.NewPool(&worker.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(pool.Enqueue(worker.Job{SessionID: sessionID})).To(BeTrue())
			pool.Close()
		})

		It("drops jobs when the queue is full", func() {
			small, err := worker.NewPool(&worker.Config{
				Manager:    manager,
				NumWorkers: 1,
				QueueSize:  1,
			})
			Expect(err).NotTo(HaveOccurred())

			// Saturate the queue faster than one worker drains it; at
			// least one enqueue must be rejected rather than blocking.
			accepted := 0
			for i := 0; i < 500; i++ {
				if small.Enqueue(worker.Job{SessionID: sessionID}) {
					accepted++
				}
			}
			small.Close()
			Expect(accepted).To(BeNumerically("<", 500))
		})
	})

	Describe("processing", func() {
		It("mediates the session in the background", func() {
			conversation, err := manager.Conversation(sessionID)
			Expect(err).NotTo(HaveOccurred())
			conversation.AddMessage(ctx, llm.RoleUser, "persist me")

			pool.Enqueue(worker.Job{SessionID: sessionID})
			pool.Close()

			metadata, err := manager.Metadata(sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(metadata.MessageCount).To(Equal(1))
		})

		It("publishes a mediation event", func() {
			pool.Enqueue(worker.Job{SessionID: sessionID})
			pool.Close()

			events := publisher.all()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(eventstream.TypeSessionMediated))
			Expect(events[0].SessionID).To(Equal(sessionID))
			Expect(events[0].Provider).To(Equal("stub"))
		})

		It("extracts concepts from the analyze text", func() {
			pool.Enqueue(worker.Job{
				SessionID:   sessionID,
				AnalyzeText: "Schrodinger proposed the famous Cat thought experiment",
			})
			pool.Close()

			node, err := store.FindNode(ctx, graph.NodeConcept, "concept:Schrodinger")
			Expect(err).NotTo(HaveOccurred())
			Expect(node).NotTo(Equal(graph.RefNil))
		})

		It("skips publishing for sessions evicted mid-flight", func() {
			bad := worker.Job{SessionID: "session_gone"}
			pool.Enqueue(bad)
			pool.Close()

			Expect(publisher.all()).To(BeEmpty())
		})
	})
})
