package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{Field: "DATABASE_URL", Message: "required"})
	}
	if cfg.HistoryURL == "" {
		errs = append(errs, ValidationError{Field: "HISTORY_URL", Message: "required"})
	}
	if cfg.InitiatorURL == "" {
		errs = append(errs, ValidationError{Field: "INITIATOR_URL", Message: "required"})
	}

	errs = appendDurationErrors(errs, "COMPENSATION_WINDOW", cfg.CompensationWindowStr)
	errs = appendDurationErrors(errs, "RECURRING_INTERVAL", cfg.RecurringIntervalStr)
	errs = appendDurationErrors(errs, "SNAPSHOT_REFRESH_INTERVAL", cfg.SnapshotRefreshIntervalStr)
	errs = appendDurationErrors(errs, "REQUEST_TIMEOUT", cfg.RequestTimeoutStr)
	errs = appendDurationErrors(errs, "DB_OP_TIMEOUT", cfg.DBOpTimeoutStr)
	errs = appendDurationErrors(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)

	if cfg.CronTimezone != "" {
		if _, err := time.LoadLocation(cfg.CronTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "CRON_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDurationErrors(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
