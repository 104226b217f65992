package circuitbreaker

import "time"

// Clock abstracts time so that window and reset behavior can be tested
// deterministically. Production code uses RealClock; tests substitute a
// stub to move time forward without sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock is a zero-value Clock backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }
