package clock

import "time"

// Clock supplies the timestamps stamped onto check results.
// Params: none.
// Returns: current wall-clock time, swappable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production clock behind probe timing and result stamps.
// Params: none.
// Returns: system time normalized to UTC.
type RealClock struct{}

// Now reads the system clock.
// Params: none.
// Returns: current time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
