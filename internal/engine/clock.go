package engine

import "time"

// TimeSource supplies the current time in unix seconds. Deadlines and the
// grace period are compared against it; it is never used for ordering.
type TimeSource interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// FixedTime always returns the same instant. The CLI uses it for --now.
type FixedTime uint64

// Now returns t.
func (t FixedTime) Now() uint64 {
	return uint64(t)
}
