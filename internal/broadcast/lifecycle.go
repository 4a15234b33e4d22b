package broadcast

import (
	"context"

	"github.com/okian/scorecast/pkg/logger"
)

// Membership is the part of the bus the lifecycle manager drives.
type Membership interface {
	Register(sub Subscriber) bool
	Unregister(sub Subscriber) bool
}

// Lifecycle registers display sessions on connect and unregisters them on
// disconnect. Transports call it; it holds the bus it was built with.
type Lifecycle struct {
	members Membership
	logger  logger.Logger
}

// NewLifecycle returns a lifecycle manager bound to members.
func NewLifecycle(members Membership, l logger.Logger) *Lifecycle {
	if l == nil {
		l = logger.Get().Named("lifecycle")
	}
	return &Lifecycle{members: members, logger: l}
}

// OnConnect registers sub. Exactly one Register call per connect.
func (l *Lifecycle) OnConnect(ctx context.Context, sub Subscriber) {
	if !l.members.Register(sub) {
		l.logger.Debug(ctx, "subscriber already registered")
	}
}

// OnDisconnect unregisters sub. Exactly one Unregister call per disconnect.
func (l *Lifecycle) OnDisconnect(ctx context.Context, sub Subscriber) {
	if !l.members.Unregister(sub) {
		l.logger.Debug(ctx, "subscriber was not registered")
	}
}
