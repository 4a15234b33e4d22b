package websocket

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scorecast/pkg/logger"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	maxInboundMessage   = 512
)

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock driving write deadlines and pings.
func WithClock(c clockwork.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithWriteTimeout bounds a single frame write to a display.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPingInterval sets how often connected displays are pinged. A display
// that misses two pongs in a row is dropped.
func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithAllowedOrigins restricts which browser origins may connect. No origins
// allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = append([]string(nil), origins...)
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
