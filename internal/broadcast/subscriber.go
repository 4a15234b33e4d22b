package broadcast

import (
	"context"

	"github.com/okian/scorecast/internal/domain/model"
)

// Subscriber is a connected display able to render pushed updates.
//
// The subscriber value itself is its identity in the registry. Values that
// are not comparable are refused by Register; pointer types are the norm.
// Receive is never called concurrently for the same subscriber. Its ctx is
// canceled when the subscriber is unregistered.
type Subscriber interface {
	Receive(ctx context.Context, e model.UpdateEvent) error
}

// SubscriberFunc adapts a function to a Subscriber. Func values are not
// comparable and Register refuses them; wrap with NewFuncSubscriber.
type SubscriberFunc func(ctx context.Context, e model.UpdateEvent) error

// Receive calls f.
func (f SubscriberFunc) Receive(ctx context.Context, e model.UpdateEvent) error {
	return f(ctx, e)
}

type funcSubscriber struct {
	fn SubscriberFunc
}

func (s *funcSubscriber) Receive(ctx context.Context, e model.UpdateEvent) error {
	return s.fn(ctx, e)
}

// NewFuncSubscriber returns a registrable Subscriber backed by fn.
func NewFuncSubscriber(fn SubscriberFunc) Subscriber {
	return &funcSubscriber{fn: fn}
}
