// Package worker provides an asynchronous pool that runs session mediation,
// concept extraction, and event publishing off the chat hot path. The caller
// enqueues a job after a completion returns; the pool synchronizes the graph
// and notifies downstream consumers in the background.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/bridge"
	"github.com/meshmindco/meshmind/pkg/eventstream"
	"github.com/meshmindco/meshmind/pkg/session"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of background work for one session.
type Job struct {
	// SessionID names the session to mediate.
	SessionID string

	// AnalyzeText, when non-empty, is run through the neural-symbolic
	// bridge to extract concepts into the graph. Typically the latest
	// assistant reply.
	AnalyzeText string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Manager is the session manager whose sessions are mediated.
	Manager *session.Manager

	// Bridge is the optional neural-symbolic bridge for concept
	// extraction. Jobs carrying AnalyzeText are skipped when nil.
	Bridge *bridge.Bridge

	// Publisher is the optional event publisher notified after each
	// mediation.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes mediation jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Manager == nil {
		return nil, fmt.Errorf("worker pool requires a session manager")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job
// being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", zap.String("session_id", job.SessionID))
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("session_id", job.SessionID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the chat surface has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("mediation worker stopped", zap.Uint("worker_id", id))
}

// processJob mediates the session, runs optional concept extraction, and
// publishes the mediation event. Each step degrades independently: a failed
// extraction still publishes, a failed publish is only logged.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Manager.MediateSession(ctx, job.SessionID); err != nil {
		p.logger.Error("async mediation failed",
			zap.String("session_id", job.SessionID),
			zap.Error(err),
		)
		return
	}

	if p.config.Bridge != nil && job.AnalyzeText != "" {
		if _, err := p.config.Bridge.LLMToGraph(ctx, job.AnalyzeText); err != nil {
			p.logger.Warn("concept extraction failed",
				zap.String("session_id", job.SessionID),
				zap.Error(err),
			)
		}
	}

	p.publishMediated(ctx, job.SessionID)
}

func (p *Pool) publishMediated(ctx context.Context, sessionID string) {
	if p.config.Publisher == nil {
		return
	}

	metadata, err := p.config.Manager.Metadata(sessionID)
	if err != nil {
		// Evicted between mediation and publish.
		return
	}

	event := eventstream.Event{
		Type:       eventstream.TypeSessionMediated,
		SessionID:  sessionID,
		Provider:   metadata.Provider,
		Messages:   metadata.MessageCount,
		Persistent: metadata.IsPersistent,
		OccurredAt: time.Now().UTC(),
	}

	if err := p.config.Publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("publishing mediation event failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
