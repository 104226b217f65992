package registry

import "errors"

var (
	// ErrNotFound is returned by GetConfig when the name has no entry.
	ErrNotFound = errors.New("breaker configuration not found")

	// ErrEmptyName is returned when a breaker is registered without a name.
	ErrEmptyName = errors.New("breaker name must not be empty")

	// ErrStopped is returned for operations against a stopped box.
	ErrStopped = errors.New("breaker box is stopped")
)

// NotFoundError reports an operation against a name absent from the box.
// It carries the requested name so callers can correlate.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "breaker not found: " + e.Name
}
