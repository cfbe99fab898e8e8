package domain

import "time"

// ExecutionRecord is the most recent known run of a pipeline.
// A nil StartTime means the run is known but has not started yet, which is
// distinct from no record being returned at all.
type ExecutionRecord struct {
	PipelineID string
	StartTime  *time.Time
}

// Started reports whether the record carries a start time.
func (r ExecutionRecord) Started() bool {
	return r.StartTime != nil
}
