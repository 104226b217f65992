// Package circuitbreaker implements the failure-tracking engine for a single
// named breaker.
//
// A breaker counts failures over a sliding time window and trips once the
// configured threshold is reached. It has three states:
//
//   - CLOSED: Normal operation, failures are counted
//   - OPEN: Tripped automatically, recovers after the reset window
//   - DISABLED: Tripped by an operator, immune to reset
//
// Usage:
//
//	cb, err := circuitbreaker.New("payments-api", circuitbreaker.Config{
//	    MaxFailures:   5,
//	    FailureWindow: time.Minute,
//	    ResetWindow:   30 * time.Second,
//	}, nil)
//	cb.RecordFailure()
//	if cb.Ask() == circuitbreaker.VerdictTripped {
//	    // Fail fast...
//	}
//
// Breaker methods are not safe for concurrent use. The registry serializes
// all access through its per-box worker, so the engine carries no locks.
package circuitbreaker
