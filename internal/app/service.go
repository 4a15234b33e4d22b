// Package service provides the composition root that owns the event bus and
// implements the dependencies required by the HTTP and WebSocket adapters.
package service

import (
	"context"
	"runtime"
	"strconv"
	"sync"

	"github.com/okian/scorecast/internal/broadcast"
	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// Service owns the single process-wide Bus and the session lifecycle built on it.
type Service struct {
	mu sync.RWMutex

	// Core components
	bus       *broadcast.Bus
	lifecycle *broadcast.Lifecycle

	// Configuration
	fanoutWorkers int
	queueSize     int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFanoutWorkers sets the number of fan-out shards.
func WithFanoutWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.fanoutWorkers = count
		}
	}
}

// WithQueueSize sets the capacity of each fan-out queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		fanoutWorkers: runtime.NumCPU(),
		queueSize:     1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds a fresh bus and starts its fan-out workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting broadcast service...")

	s.bus = broadcast.NewBus(
		broadcast.WithShards(s.fanoutWorkers),
		broadcast.WithQueueSize(s.queueSize),
		broadcast.WithLogger(s.logger.Named("bus")),
	)
	s.bus.Start(ctx)
	s.lifecycle = broadcast.NewLifecycle(s, s.logger.Named("lifecycle"))

	s.started = true
	metrics.UpdateFanoutWorkers(s.fanoutWorkers)
	s.logger.Info(ctx, "broadcast service started",
		logger.Int("fanoutWorkers", s.fanoutWorkers),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains the fan-out queues and closes every remaining session.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping broadcast service...")
	err := s.bus.Stop(ctx)
	s.started = false
	if err != nil {
		s.logger.Warn(ctx, "fan-out drain incomplete", logger.Error(err))
	}
	s.logger.Info(ctx, "broadcast service stopped")
	return err
}

// Publish hands e to every connected display. It returns the number of
// displays targeted, 0 when the service is not running.
func (s *Service) Publish(ctx context.Context, e model.UpdateEvent) int { //nolint:gocritic // hugeParam: events are immutable values
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		metrics.RecordEventDropped("stopped")
		return 0
	}
	return s.bus.Publish(ctx, e)
}

// Register adds a display to the running bus.
func (s *Service) Register(sub broadcast.Subscriber) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return false
	}
	return s.bus.Register(sub)
}

// Unregister removes a display from the running bus.
func (s *Service) Unregister(sub broadcast.Subscriber) bool {
	s.mu.RLock()
	bus := s.bus
	s.mu.RUnlock()

	if bus == nil {
		return false
	}
	return bus.Unregister(sub)
}

// OnConnect registers a newly connected display session.
func (s *Service) OnConnect(ctx context.Context, sub broadcast.Subscriber) {
	s.sessions().OnConnect(ctx, sub)
}

// OnDisconnect unregisters a display session that went away.
func (s *Service) OnDisconnect(ctx context.Context, sub broadcast.Subscriber) {
	s.sessions().OnDisconnect(ctx, sub)
}

func (s *Service) sessions() *broadcast.Lifecycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lifecycle == nil {
		return broadcast.NewLifecycle(s, s.logger)
	}
	return s.lifecycle
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"fanoutWorkers": s.fanoutWorkers,
		"queueSize":     s.queueSize,
		"subscribers":   0,
	}

	if s.started {
		subscribers := s.bus.Subscribers()
		lengths := s.bus.QueueLengths()

		stats["subscribers"] = subscribers
		stats["backlog"] = s.bus.Backlog()
		stats["queueLengths"] = lengths
		stats["queueCapacity"] = s.bus.QueueCapacity()

		metrics.UpdateSubscribers(subscribers)
		for shard, n := range lengths {
			metrics.UpdateFanoutQueueSize(strconv.Itoa(shard), n)
		}
	}

	return stats
}
