package tool

import "time"

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

// UTCNow is the production clock.
func UTCNow() time.Time { return time.Now().UTC() }

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t.UTC() }
}

// DateString formats t as the YYYY-MM-DD key used by daily stats.
func DateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
