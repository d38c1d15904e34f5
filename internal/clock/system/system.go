// Package system provides real clock implementations.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Monotonic implements crawler.MonotonicClock. Elapsed is measured with the
// monotonic reading carried by time.Time, so wall-clock steps do not affect it.
type Monotonic struct {
	origin time.Time
}

// NewMonotonic creates a Monotonic clock whose origin is the moment of creation.
func NewMonotonic() *Monotonic {
	return &Monotonic{origin: time.Now()}
}

// Elapsed returns the time since the clock was created.
func (m *Monotonic) Elapsed() time.Duration {
	return time.Since(m.origin)
}
