package clock

import "time"

// Clock supplies the current time. Core services take a Clock instead of
// calling time.Now directly so tests can pin the time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystem returns a Clock backed by the wall clock, in UTC.
func NewSystem() Clock {
	return systemClock{}
}

// Fixed is a Clock frozen at a single instant.
type Fixed struct {
	Instant time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{Instant: t}
}

func (f *Fixed) Now() time.Time {
	return f.Instant
}

// Advance moves the fixed instant forward.
func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}
