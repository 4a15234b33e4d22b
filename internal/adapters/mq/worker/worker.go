// Package worker runs the fan-out stage between the bus and the per-subscriber
// mailboxes.
//
// The pool owns one FIFO queue and one dispatcher goroutine per shard. A
// target always lives on the same shard, so two jobs submitted in sequence
// reach a given target in that sequence.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scorecast/internal/adapters/mq/queue"
	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultShardCount     = 4
	defaultQueueCapacity  = 1024
	workerShutdownTimeout = 5 * time.Second
)

// Target receives fan-out deliveries. Deliver must not block.
type Target interface {
	Deliver(e model.UpdateEvent)
}

// Job is one published event bound for the targets of one shard.
type Job struct {
	Event   model.UpdateEvent
	Targets []Target
}

// InMemoryWorker drains one shard queue.
type InMemoryWorker struct {
	queue  queue.Queue[Job]
	name   string
	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a dispatcher worker for q.
func NewInMemoryWorker(q queue.Queue[Job], opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue: q,
		name:  "worker",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("fanout")
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run drains the queue until it is closed. Canceling ctx does not stop the
// worker; close the queue instead so queued jobs are still dispatched.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for job := range w.queue.Dequeue() {
		w.dispatch(ctx, job)
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// dispatch hands the event to every target of the job.
func (w *InMemoryWorker) dispatch(ctx context.Context, job Job) { //nolint:gocritic // hugeParam: jobs travel by value through the queue
	for _, t := range job.Targets {
		w.deliver(ctx, t, job.Event)
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, t Target, e model.UpdateEvent) { //nolint:gocritic // hugeParam: events are immutable values
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByType("fanout_panic", "high")
			w.logger.Error(ctx, "fan-out target panicked",
				logger.String("eventID", e.ID),
				logger.Any("panic", r),
			)
		}
	}()
	t.Deliver(e)
}

// Pool manages one queue and one worker per shard.
type Pool struct {
	queues  []*queue.InMemoryQueue[Job]
	workers []*InMemoryWorker

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	logger logger.Logger
}

// NewPool creates a pool with shardCount shards of queueCapacity each.
func NewPool(shardCount, queueCapacity int, opts ...Option) *Pool {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	if queueCapacity < 1 {
		queueCapacity = defaultQueueCapacity
	}

	p := &Pool{
		queues:  make([]*queue.InMemoryQueue[Job], shardCount),
		workers: make([]*InMemoryWorker, shardCount),
		logger:  logger.Get().Named("fanout-pool"),
	}

	for i := 0; i < shardCount; i++ {
		name := strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue[Job](
			queue.WithCapacity(queueCapacity),
			queue.WithName(name),
		)
		workerOpts := append([]Option{WithName("shard-" + name)}, opts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], workerOpts...)
	}

	metrics.UpdateFanoutWorkers(shardCount)
	return p
}

// Start starts all workers in the pool. Later calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		for _, w := range p.workers {
			go w.Run(ctx)
		}
	})
}

// Shards returns the number of shards.
func (p *Pool) Shards() int {
	return len(p.queues)
}

// Submit queues job on shard, waiting for space until ctx is done.
func (p *Pool) Submit(ctx context.Context, shard int, job Job) error { //nolint:gocritic // hugeParam: jobs travel by value through the queue
	if shard < 0 || shard >= len(p.queues) {
		return fmt.Errorf("shard %d out of range [0,%d)", shard, len(p.queues))
	}
	return p.queues[shard].EnqueueWait(ctx, job)
}

// QueueCapacity returns the job capacity of each shard queue.
func (p *Pool) QueueCapacity() int {
	return p.queues[0].Capacity()
}

// QueueLengths returns the pending job count per shard.
func (p *Pool) QueueLengths() []int {
	lens := make([]int, len(p.queues))
	for i, q := range p.queues {
		lens[i] = q.Len()
	}
	return lens
}

// Shutdown closes every queue and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		for _, q := range p.queues {
			_ = q.Close()
		}
		if !p.started.Load() {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "fan-out worker shutdown timed out", logger.Int("shard", i))
				err = fmt.Errorf("fan-out shutdown: %w", shutdownCtx.Err())
				return
			}
		}
	})
	return err
}
