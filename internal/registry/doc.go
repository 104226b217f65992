// Package registry manages the breakers of one namespace ("box").
//
// Every box is served by a single worker goroutine that owns the breaker
// table. All operations travel to it as commands over a buffered channel and
// block until the worker replies, so mutations on any one breaker are
// naturally serialized without per-breaker locks. Different boxes run fully
// in parallel and share no state.
//
// Usage:
//
//	box := registry.Start("payments")
//	defer box.Stop()
//
//	err := box.Register("billing-api", circuitbreaker.Config{
//	    MaxFailures:   5,
//	    FailureWindow: time.Minute,
//	    ResetWindow:   30 * time.Second,
//	})
//
//	box.IncrementError("billing-api")
//	if box.Status("billing-api").Code == registry.StatusTripped {
//	    // Fail fast...
//	}
//
// A conventional default box is available through Default() for
// single-namespace use.
package registry
