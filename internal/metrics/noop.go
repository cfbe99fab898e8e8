package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) PassStarted()                                                  {}
func (n *NoopSink) PassCompleted(duration time.Duration, misfires int, err error) {}
func (n *NoopSink) MisfireDetected(delay time.Duration)                           {}
func (n *NoopSink) HistoryBatchCompleted(d time.Duration, size int, err error)    {}
func (n *NoopSink) ErrorRecorded(errorType string)                                {}
func (n *NoopSink) SnapshotSizeUpdate(count int)                                  {}
