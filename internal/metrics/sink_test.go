package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		// Timeouts
		{"context deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"timeout in message", errors.New("operation timeout"), ErrorTypeTimeout},
		{"Timeout uppercase", errors.New("Timeout exceeded"), ErrorTypeTimeout},
		{"deadline in message", errors.New("context deadline exceeded"), ErrorTypeTimeout},

		// Circuit breaker
		{"circuit open", errors.New("circuit breaker is open"), ErrorTypeCircuitOpen},

		// Connection errors
		{"connection refused", errors.New("connection refused"), ErrorTypeConnection},
		{"no such host", errors.New("no such host"), ErrorTypeConnection},
		{"network unreachable", errors.New("network is unreachable"), ErrorTypeConnection},
		{"dial error", errors.New("dial tcp 127.0.0.1:80: connect: refused"), ErrorTypeConnection},

		// HTTP status errors
		{"bad status", errors.New("unexpected status 502"), ErrorTypeHTTPStatus},

		// Cron parse errors
		{"bad expression", errors.New(`parse cron expression "61 * * * *": failed`), ErrorTypeCronParse},

		// Other
		{"nil error", nil, ErrorTypeOther},
		{"generic error", errors.New("unknown error"), ErrorTypeOther},
		{"empty error", errors.New(""), ErrorTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorType(tt.err)
			if got != tt.want {
				t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
