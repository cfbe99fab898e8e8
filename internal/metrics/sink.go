package metrics

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate
// errors. If the metrics backend is unavailable, implementations log warnings
// and continue.
type Sink interface {
	// Compensation pass metrics
	PassStarted()
	PassCompleted(duration time.Duration, misfires int, err error)
	MisfireDetected(delay time.Duration)

	// History fetcher metrics
	HistoryBatchCompleted(duration time.Duration, size int, err error)

	// Error counter, tagged by error type (see ErrorType)
	ErrorRecorded(errorType string)

	// Snapshot cache metrics
	SnapshotSizeUpdate(count int)
}

// Error type labels for ErrorRecorded.
const (
	ErrorTypeTimeout     = "timeout"
	ErrorTypeConnection  = "connection_error"
	ErrorTypeCircuitOpen = "circuit_open"
	ErrorTypeHTTPStatus  = "http_status"
	ErrorTypeCronParse   = "cron_parse"
	ErrorTypeOther       = "other"
)

// ErrorType maps an error to a stable label for the error counter.
func ErrorType(err error) string {
	if err == nil {
		return ErrorTypeOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "circuit breaker"):
		return ErrorTypeCircuitOpen
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "dial"):
		return ErrorTypeConnection
	case strings.Contains(msg, "unexpected status"):
		return ErrorTypeHTTPStatus
	case strings.Contains(msg, "parse cron"):
		return ErrorTypeCronParse
	default:
		return ErrorTypeOther
	}
}
