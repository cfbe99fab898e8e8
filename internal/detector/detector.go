// Package detector decides whether a cron trigger misfired.
//
// A misfire is a scheduled fire time that elapsed inside the compensation
// window without a corresponding execution being recorded. The detector is
// pure: it takes a schedule, the last known execution start, and a time
// window, and returns a decision. Logging, metrics, and dispatch are the
// caller's job.
package detector

import (
	"time"

	"github.com/djlord-it/misfire-guard/internal/cron"
	"github.com/djlord-it/misfire-guard/internal/domain"
)

// Result is the outcome of evaluating one trigger. ValidTriggerTime is only
// meaningful when a fire time was found in the window; it is reported even
// when Missed is false so callers can log the decision.
type Result struct {
	Missed           bool
	ValidTriggerTime time.Time
}

// LastValidFireInWindow returns the greatest fire time of sched within
// [from, to], or ok=false if the schedule does not fire in the window at all.
//
// The candidate is seeded at the first fire time at or after from. Each
// advance truncates the candidate to minute precision, probes one minute
// later, and asks the schedule for the next fire at or after the probe; the
// minute-level probe matches cron's one-minute granularity and guarantees
// forward progress without rediscovering the current candidate.
func LastValidFireInWindow(sched cron.Schedule, from, to time.Time) (time.Time, bool) {
	candidate := sched.NextAtOrAfter(from)
	if candidate.IsZero() || candidate.After(to) {
		return time.Time{}, false
	}

	for {
		probe := candidate.Truncate(time.Minute).Add(time.Minute)
		next := sched.NextAtOrAfter(probe)
		if next.IsZero() || next.After(to) {
			return candidate, true
		}
		candidate = next
	}
}

// Evaluate reports whether a trigger misfired within the window.
//
// lastStart is the start time of the pipeline's most recent known execution;
// nil means the execution is known but has not started. Pipelines with no
// execution history at all must never reach this function: treating "no
// history" as "always missed" would retrigger every idle pipeline at once.
func Evaluate(sched cron.Schedule, lastStart *time.Time, window domain.DateWindow) Result {
	fire, ok := LastValidFireInWindow(sched, window.Floor, window.Now)
	if !ok {
		return Result{}
	}
	missed := lastStart == nil || lastStart.Before(fire)
	return Result{Missed: missed, ValidTriggerTime: fire}
}
