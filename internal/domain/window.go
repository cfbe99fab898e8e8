package domain

import "time"

// DateWindow is an immutable snapshot of the time bounds for one detection
// pass: everything between Floor and Now is eligible for misfire evaluation.
// A fresh window is built for every pass and never persisted.
type DateWindow struct {
	Location *time.Location
	Floor    time.Time
	Now      time.Time
}

// NewDateWindow builds a window ending at now and reaching back by span.
func NewDateWindow(loc *time.Location, span time.Duration, now time.Time) DateWindow {
	now = now.In(loc)
	return DateWindow{
		Location: loc,
		Floor:    now.Add(-span),
		Now:      now,
	}
}
