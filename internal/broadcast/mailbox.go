package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// mailbox is a subscriber's private serialized execution context: an
// unbounded FIFO of pending events drained by exactly one goroutine.
//
// Lock order: gate before mu.
type mailbox struct {
	sub    Subscriber
	shard  int
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []model.UpdateEvent
	closed  bool
	wake    chan struct{}

	// gate is held for the whole of a Receive call; closing takes it to wait
	// out an in-flight render.
	gate sync.Mutex
	done chan struct{}
}

func newMailbox(sub Subscriber, shard int, l logger.Logger) *mailbox {
	ctx, cancel := context.WithCancel(context.Background())
	m := &mailbox{
		sub:    sub,
		shard:  shard,
		logger: l,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Deliver appends e to the mailbox. It never blocks; on a closed mailbox it
// is a no-op.
func (m *mailbox) Deliver(e model.UpdateEvent) { //nolint:gocritic // hugeParam: events are immutable values
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.pending = append(m.pending, e)
	m.mu.Unlock()

	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events waiting to be rendered.
func (m *mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *mailbox) run() {
	defer close(m.done)
	for {
		e, ok := m.next()
		if !ok {
			return
		}
		m.render(e)
	}
}

// next blocks until an event is pending or the mailbox closes.
func (m *mailbox) next() (model.UpdateEvent, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return model.UpdateEvent{}, false
		}
		if len(m.pending) > 0 {
			e := m.pending[0]
			m.pending[0] = model.UpdateEvent{}
			m.pending = m.pending[1:]
			m.mu.Unlock()
			return e, true
		}
		m.mu.Unlock()
		<-m.wake
	}
}

func (m *mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// render runs one Receive call. Errors and panics stay here.
func (m *mailbox) render(e model.UpdateEvent) { //nolint:gocritic // hugeParam: events are immutable values
	m.gate.Lock()
	defer m.gate.Unlock()

	if m.isClosed() {
		return
	}

	err := m.receive(e)
	if err != nil {
		m.logger.Warn(m.ctx, "display render failed",
			logger.String("eventID", e.ID),
			logger.Error(err),
		)
		return
	}

	if !e.ReceivedAt.IsZero() {
		metrics.RecordDelivery(float64(time.Since(e.ReceivedAt).Microseconds()) / 1000)
	}
}

func (m *mailbox) receive(e model.UpdateEvent) (err error) { //nolint:gocritic // hugeParam: events are immutable values
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordDeliveryError("panic")
			err = fmt.Errorf("%w: subscriber panicked: %v", ErrDelivery, r)
		}
	}()

	if rerr := m.sub.Receive(m.ctx, e); rerr != nil {
		metrics.RecordDeliveryError("error")
		return fmt.Errorf("%w: %w", ErrDelivery, rerr)
	}
	return nil
}

// markClosed stops accepting and rendering events. Pending events are
// discarded. It reports whether this call did the closing.
func (m *mailbox) markClosed() bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.closed = true
	m.pending = nil
	m.mu.Unlock()

	m.cancel()
	m.signal()
	return true
}

// awaitIdle returns once no Receive call is in flight. Combined with
// markClosed it guarantees no render happens afterwards.
func (m *mailbox) awaitIdle() {
	m.gate.Lock()
	m.gate.Unlock() //nolint:staticcheck // empty critical section waits for the in-flight render
}
