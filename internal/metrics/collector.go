package metrics

import (
	"context"
	"log/slog"

	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerbox/internal/registry"
)

// Collector consumes registry events on a buffered channel and updates the
// Prometheus instruments from a single goroutine.
type Collector struct {
	eventCh chan registry.Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, m *Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan registry.Event, bufferSize),
		metrics: m,
		logger:  logger,
	}
}

// EventChannel is the write side handed to registries via WithEvents.
func (c *Collector) EventChannel() chan<- registry.Event {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event registry.Event) {
	switch event.Type {
	case registry.EventFailureRecorded:
		c.metrics.RecordFailure(event.Box, event.Breaker)

	case registry.EventTripped:
		c.metrics.RecordTrip(event.Box, event.Breaker)
		c.metrics.AddUnavailable(event.Box, 1)

	case registry.EventAutoReset:
		c.metrics.RecordReset(event.Box, event.Breaker, "auto")
		c.metrics.AddUnavailable(event.Box, -1)

	case registry.EventManualReset:
		c.metrics.RecordReset(event.Box, event.Breaker, "manual")
		c.metrics.AddUnavailable(event.Box, -1)

	case registry.EventDisabled:
		c.metrics.AddUnavailable(event.Box, 1-unavailable(event.Prev))

	case registry.EventEnabled:
		c.metrics.AddUnavailable(event.Box, -unavailable(event.Prev))

	case registry.EventRegistered:
		if event.Replaced {
			// Overwrite: the fresh breaker is closed, the old one may not be.
			c.metrics.AddUnavailable(event.Box, -unavailable(event.Prev))
		} else {
			c.metrics.AddRegistered(event.Box, 1)
		}

	case registry.EventRemoved:
		c.metrics.AddRegistered(event.Box, -1)
		c.metrics.AddUnavailable(event.Box, -unavailable(event.State))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// unavailable is 1 for states that fail callers fast.
func unavailable(s circuitbreaker.State) int {
	if s == circuitbreaker.StateClosed {
		return 0
	}
	return 1
}
