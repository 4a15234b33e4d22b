package broadcast

import (
	"github.com/okian/scorecast/pkg/logger"
)

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithShards sets the number of fan-out shards, one worker each.
func WithShards(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.shards = n
		}
	}
}

// WithQueueSize sets the capacity of each fan-out shard queue.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithLogger sets a custom logger for the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}
