package broadcast

import (
	"context"
	"reflect"
	"sync"

	"github.com/okian/scorecast/internal/adapters/mq/worker"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// Registry is the concurrent set of currently registered subscribers.
//
// It holds a non-owning reference to each subscriber plus the mailbox that
// serializes its renders. Callers never see the underlying map.
type Registry struct {
	mu        sync.RWMutex
	members   map[Subscriber]*mailbox
	shards    int
	nextShard int

	logger logger.Logger
}

// NewRegistry creates an empty registry spreading subscribers over shards
// fan-out shards.
func NewRegistry(shards int, l logger.Logger) *Registry {
	if shards < 1 {
		shards = 1
	}
	if l == nil {
		l = logger.Get().Named("registry")
	}
	return &Registry{
		members: make(map[Subscriber]*mailbox),
		shards:  shards,
		logger:  l,
	}
}

// Register adds sub. Registering a subscriber twice is a no-op; the return
// value reports whether sub was newly added. Subscribers whose dynamic type
// is not comparable cannot serve as a registry key and are rejected.
func (r *Registry) Register(sub Subscriber) bool {
	if sub == nil {
		return false
	}
	if !identifiable(sub) {
		r.logger.Warn(context.Background(), "subscriber rejected: type is not comparable",
			logger.String("type", reflect.TypeOf(sub).String()),
			logger.Error(ErrNotComparable),
		)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sub]; ok {
		return false
	}

	shard := r.nextShard
	r.nextShard = (r.nextShard + 1) % r.shards
	r.members[sub] = newMailbox(sub, shard, r.logger)
	metrics.UpdateSubscribers(len(r.members))
	return true
}

// Unregister removes sub. Unregistering an absent subscriber is a no-op; the
// return value reports whether sub was present.
//
// Once Unregister returns, no Receive call for sub is running or will start.
// It must therefore not be called from inside sub's own Receive.
func (r *Registry) Unregister(sub Subscriber) bool {
	if sub == nil || !identifiable(sub) {
		return false
	}

	r.mu.Lock()
	mb, ok := r.members[sub]
	if ok {
		delete(r.members, sub)
		mb.markClosed()
		metrics.UpdateSubscribers(len(r.members))
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	mb.awaitIdle()
	return true
}

// identifiable reports whether sub can be used as a map key without
// panicking. Value.Comparable also looks inside interface fields.
func identifiable(sub Subscriber) bool {
	return reflect.ValueOf(sub).Comparable()
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Backlog returns the total number of events waiting in subscriber mailboxes.
func (r *Registry) Backlog() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, mb := range r.members {
		total += mb.Pending()
	}
	return total
}

// snapshot returns the current members grouped by fan-out shard.
func (r *Registry) snapshot() [][]worker.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byShard := make([][]worker.Target, r.shards)
	for _, mb := range r.members {
		byShard[mb.shard] = append(byShard[mb.shard], mb)
	}
	return byShard
}

// closeAll unregisters every subscriber.
func (r *Registry) closeAll(ctx context.Context) {
	r.mu.Lock()
	boxes := make([]*mailbox, 0, len(r.members))
	for sub, mb := range r.members {
		mb.markClosed()
		boxes = append(boxes, mb)
		delete(r.members, sub)
	}
	metrics.UpdateSubscribers(0)
	r.mu.Unlock()

	for _, mb := range boxes {
		mb.awaitIdle()
	}
	if len(boxes) > 0 {
		r.logger.Info(ctx, "closed remaining subscribers", logger.Int("count", len(boxes)))
	}
}
