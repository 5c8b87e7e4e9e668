package config

import (
	"fmt"
	"net/url"
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

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// SWEEP_INTERVAL must be a valid positive duration
	if cfg.SweepIntervalStr != "" {
		d, err := time.ParseDuration(cfg.SweepIntervalStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "SWEEP_INTERVAL",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "SWEEP_INTERVAL",
				Message: "must be positive",
			})
		}
	}

	// WEBHOOK_URL must be an absolute http(s) URL when set
	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "WEBHOOK_URL",
				Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.WebhookURL),
			})
		}
	}

	// EVENT_HISTORY_CAPACITY must be positive
	if cfg.EventHistoryCapacity <= 0 {
		errs = append(errs, ValidationError{
			Field:   "EVENT_HISTORY_CAPACITY",
			Message: "must be positive",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
