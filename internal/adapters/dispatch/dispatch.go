// Package dispatch runs admitted prefetch jobs on a bounded worker
// pool, capping true fetch parallelism at the configured worker count.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/pkg/logger"
	"github.com/swipedine/prefetch/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkers    = 2
	defaultQueueDepth = 32

	poolShutdownTimeout = 10 * time.Second
)

// Job is one admitted candidate plus the decision that admitted it.
type Job struct {
	Candidate model.Candidate
	Decision  model.Decision
}

// Processor executes a single job. The orchestrator implements this;
// the pool only owns scheduling.
type Processor interface {
	Process(ctx context.Context, job Job)
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent fetch workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueDepth bounds the number of pending jobs.
func WithQueueDepth(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.depth = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pool feeds jobs to a fixed set of workers through a bounded channel.
type Pool struct {
	workers   int
	depth     int
	processor Processor

	jobs     chan Job
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool

	logger logger.Logger
}

// NewPool creates a worker pool around the given processor.
func NewPool(processor Processor, opts ...Option) *Pool {
	p := &Pool{
		workers:   defaultWorkers,
		depth:     defaultQueueDepth,
		processor: processor,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("dispatch"),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.jobs = make(chan Job, p.depth)
	return p
}

// Start launches the workers. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// run is one worker loop.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			start := time.Now()
			p.processor.Process(ctx, job)
			metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
		}
	}
}

// Submit offers a job without blocking. Returns false when the pool is
// saturated or shut down; the caller decides what to do with the
// rejected candidate.
func (p *Pool) Submit(ctx context.Context, job Job) bool {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return false
	}

	select {
	case p.jobs <- job:
		metrics.RecordDispatch()
		return true
	case <-ctx.Done():
		return false
	default:
		p.logger.Warn(ctx, "dispatch queue saturated, rejecting job",
			logger.String("itemID", job.Candidate.Item.ID),
		)
		return false
	}
}

// Drain removes and returns all pending (not yet started) jobs.
func (p *Pool) Drain(ctx context.Context) []Job {
	var drained []Job
	for {
		select {
		case job := <-p.jobs:
			drained = append(drained, job)
		default:
			return drained
		}
	}
}

// Len returns the number of pending jobs.
func (p *Pool) Len() int {
	return len(p.jobs)
}

// Stop shuts the pool down, waiting for in-flight jobs to finish.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.shutdown)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(poolShutdownTimeout):
		return fmt.Errorf("pool shutdown timed out after %s", poolShutdownTimeout)
	}
}
