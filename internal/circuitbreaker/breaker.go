package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidConfig is returned when a breaker configuration fails validation.
// Use errors.Is to test for it; the wrapped message carries the field detail.
var ErrInvalidConfig = errors.New("invalid breaker configuration")

type State int

const (
	StateClosed   State = iota // Normal operation, counting failures
	StateOpen                  // Tripped automatically, auto-recovers
	StateDisabled              // Tripped by operator, immune to reset
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Verdict is the engine's answer to "may this call proceed?".
type Verdict int

const (
	VerdictOk Verdict = iota
	VerdictTripped
	VerdictDisabled
)

func (v Verdict) String() string {
	switch v {
	case VerdictOk:
		return "ok"
	case VerdictTripped:
		return "tripped"
	case VerdictDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config holds the failure-counting parameters of one breaker. Values are
// immutable once the breaker is created; re-register the name to change them.
type Config struct {
	// MaxFailures is the number of failures inside FailureWindow that trips
	// the breaker. Must be greater than 1: a single failure can never trip.
	MaxFailures int `json:"max_failures" mapstructure:"max_failures"`

	// FailureWindow is the sliding interval over which failures count.
	FailureWindow time.Duration `json:"failure_window" mapstructure:"failure_window"`

	// ResetWindow is how long a tripped breaker stays open before the next
	// status check closes it again.
	ResetWindow time.Duration `json:"reset_window" mapstructure:"reset_window"`
}

// Validate rejects configurations the engine cannot represent.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxFailures,
			validation.Required,
			validation.Min(2).Error("must be greater than 1"),
		),
		validation.Field(&c.FailureWindow,
			validation.Required,
			validation.By(validatePositiveDuration),
		),
		validation.Field(&c.ResetWindow,
			validation.Required,
			validation.By(validatePositiveDuration),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration")
	}

	return nil
}

// Breaker tracks recent failures for one named dependency. State lives
// entirely in memory and is lost on restart.
type Breaker struct {
	name     string
	config   Config
	state    State
	failures []time.Time
	openedAt time.Time
	clock    Clock
}

// New validates cfg and returns a fresh breaker in the CLOSED state with an
// empty failure history. A nil clock defaults to RealClock.
func New(name string, cfg Config, clock Clock) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = RealClock{}
	}

	return &Breaker{
		name:   name,
		config: cfg,
		state:  StateClosed,
		clock:  clock,
	}, nil
}

func (b *Breaker) Name() string   { return b.name }
func (b *Breaker) Config() Config { return b.config }
func (b *Breaker) State() State   { return b.state }

// FailureCount returns the number of failures still inside the window.
func (b *Breaker) FailureCount() int {
	b.prune(b.clock.Now())
	return len(b.failures)
}

// RecordFailure appends the current instant to the failure history and trips
// the breaker if the threshold is reached. The incoming failure is the Nth:
// a closed breaker with MaxFailures-1 retained failures opens now. Failures
// keep accumulating while OPEN or DISABLED so the window stays meaningful
// after a reset, but only a CLOSED breaker can trip.
func (b *Breaker) RecordFailure() {
	now := b.clock.Now()
	b.prune(now)

	if b.state == StateClosed && len(b.failures) >= b.config.MaxFailures-1 {
		b.state = StateOpen
		b.openedAt = now
	}

	b.failures = append(b.failures, now)
}

// Ask reports whether the breaker currently allows traffic. An OPEN breaker
// whose reset window has elapsed closes here, as a side effect of being
// observed; there is no background timer.
func (b *Breaker) Ask() Verdict {
	switch b.state {
	case StateDisabled:
		return VerdictDisabled
	case StateOpen:
		if b.clock.Since(b.openedAt) >= b.config.ResetWindow {
			b.close()
			return VerdictOk
		}
		return VerdictTripped
	default:
		return VerdictOk
	}
}

// Reset forces an OPEN breaker back to CLOSED and clears its history.
// Resetting a CLOSED breaker is a no-op. A DISABLED breaker ignores reset;
// only Enable brings it back.
func (b *Breaker) Reset() {
	if b.state == StateOpen {
		b.close()
	}
}

// Disable trips the breaker manually, regardless of current state. A
// disabled breaker never auto-recovers.
func (b *Breaker) Disable() {
	b.state = StateDisabled
}

// Enable forces the breaker to CLOSED and clears its history, regardless of
// current state. Enabling an already-closed breaker is a harmless no-op.
func (b *Breaker) Enable() {
	b.close()
}

func (b *Breaker) close() {
	b.state = StateClosed
	b.failures = nil
	b.openedAt = time.Time{}
}

// prune drops failures older than the window, counted back from now.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.config.FailureWindow)

	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}

	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}
