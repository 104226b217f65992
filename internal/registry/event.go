package registry

import (
	"time"

	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
)

type EventType string

const (
	EventRegistered      EventType = "registered"
	EventRemoved         EventType = "removed"
	EventFailureRecorded EventType = "failure_recorded"
	EventTripped         EventType = "tripped"
	EventAutoReset       EventType = "auto_reset"
	EventManualReset     EventType = "manual_reset"
	EventDisabled        EventType = "disabled"
	EventEnabled         EventType = "enabled"
)

// Event describes a state change or observation on one breaker. Events are
// sent to the metrics collector with non-blocking semantics; a slow consumer
// drops events rather than stalling the box worker.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Box       string
	Breaker   string

	// Prev and State are the breaker's state before and after the operation,
	// so consumers can track per-box gauges from transitions alone.
	Prev  circuitbreaker.State
	State circuitbreaker.State

	// Replaced marks a registration that overwrote an existing breaker.
	Replaced bool
}
