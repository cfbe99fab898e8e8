package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.PassStarted()
	s.PassCompleted(100*time.Millisecond, 2, nil)
	s.PassCompleted(100*time.Millisecond, 0, errors.New("failed"))
	s.MisfireDetected(3 * time.Minute)
	s.HistoryBatchCompleted(50*time.Millisecond, 20, nil)
	s.ErrorRecorded(ErrorTypeTimeout)
	s.SnapshotSizeUpdate(10)
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
