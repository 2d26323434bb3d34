package ritual

import "time"

// Clock supplies wall-clock time. Every timestamp in the ritual comes from
// an injected Clock so tests and scenarios can run on fixed time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// DaysBetween returns the fractional number of days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
