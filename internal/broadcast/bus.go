package broadcast

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorecast/internal/adapters/mq/worker"
	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// Bus is the process-wide publish/subscribe channel for update events.
// Construct one per process and pass it to whoever needs it.
type Bus struct {
	registry *Registry
	pool     *worker.Pool

	shards    int
	queueSize int

	started atomic.Bool
	stopped atomic.Bool

	logger logger.Logger
}

// NewBus creates a bus. Call Start before publishing.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		shards:    runtime.NumCPU(),
		queueSize: 1024,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("bus")
	}

	b.registry = NewRegistry(b.shards, b.logger)
	b.pool = worker.NewPool(b.shards, b.queueSize, worker.WithLogger(b.logger))
	return b
}

// Start launches the fan-out workers. They run until Stop, even if ctx is
// canceled first, so events published during shutdown are still delivered.
func (b *Bus) Start(ctx context.Context) {
	if b.started.Swap(true) {
		return
	}
	b.pool.Start(ctx)
	b.logger.Info(ctx, "bus started",
		logger.Int("shards", b.shards),
		logger.Int("queueSize", b.queueSize),
	)
}

// Stop drains the fan-out queues and unregisters every subscriber.
func (b *Bus) Stop(ctx context.Context) error {
	if b.stopped.Swap(true) {
		return nil
	}
	err := b.pool.Shutdown(ctx)
	b.registry.closeAll(ctx)
	b.logger.Info(ctx, "bus stopped")
	return err
}

// Register adds sub to the set of subscribers that future publishes reach.
func (b *Bus) Register(sub Subscriber) bool {
	return b.registry.Register(sub)
}

// Unregister removes sub. After it returns sub receives nothing more.
func (b *Bus) Unregister(sub Subscriber) bool {
	return b.registry.Unregister(sub)
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	return b.registry.Len()
}

// Backlog returns the events waiting in subscriber mailboxes.
func (b *Bus) Backlog() int {
	return b.registry.Backlog()
}

// Shards returns the number of fan-out shards.
func (b *Bus) Shards() int {
	return b.pool.Shards()
}

// QueueCapacity returns the fan-out job capacity of each shard.
func (b *Bus) QueueCapacity() int {
	return b.pool.QueueCapacity()
}

// QueueLengths returns the pending fan-out jobs per shard.
func (b *Bus) QueueLengths() []int {
	return b.pool.QueueLengths()
}

// Publish hands e to every subscriber registered right now and returns how
// many were targeted. It does not wait for any subscriber to render. If a
// fan-out queue is full it waits for room until ctx is done, then drops that
// shard's share of the event.
func (b *Bus) Publish(ctx context.Context, e model.UpdateEvent) int { //nolint:gocritic // hugeParam: events are immutable values
	if b.stopped.Load() {
		b.logger.Debug(ctx, "publish after stop ignored", logger.Error(ErrBusStopped))
		metrics.RecordEventDropped("stopped")
		return 0
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	targeted := 0
	for shard, targets := range b.registry.snapshot() {
		if len(targets) == 0 {
			continue
		}
		if err := b.pool.Submit(ctx, shard, worker.Job{Event: e, Targets: targets}); err != nil {
			metrics.RecordEventDropped("queue_full")
			b.logger.Warn(ctx, "fan-out queue rejected event",
				logger.String("eventID", e.ID),
				logger.Int("shard", shard),
				logger.Int("subscribers", len(targets)),
				logger.Error(err),
			)
			continue
		}
		targeted += len(targets)
	}

	if targeted == 0 {
		metrics.RecordEventDropped("no_subscribers")
		b.logger.Debug(ctx, "no subscribers; event dropped", logger.String("eventID", e.ID))
		return 0
	}

	metrics.RecordEventPublished()
	b.logger.Debug(ctx, "event published",
		logger.String("eventID", e.ID),
		logger.Int("subscribers", targeted),
	)
	return targeted
}
