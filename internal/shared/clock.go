package shared

import "time"

// Clock abstracts time reads so expiry checks and transaction stamps are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time in UTC.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// FixedClock always returns t; used by tests.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
