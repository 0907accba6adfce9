package entity

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("booking window needs a start time and a positive duration")

// Window is a half-open time interval [Start, Start+Duration) expressed as a
// start instant plus a duration in whole minutes.
type Window struct {
	Start           time.Time
	DurationMinutes int
}

func (w Window) End() time.Time {
	return w.Start.Add(time.Duration(w.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two half-open intervals intersect.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End()) && other.Start.Before(w.End())
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.DurationMinutes <= 0 {
		return ErrInvalidWindow
	}
	return nil
}
