package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DatabaseURL:          "postgres://localhost/garryos",
		SweepIntervalStr:     "1m",
		EventHistoryCapacity: 1000,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_InvalidSweepInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1s", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SweepIntervalStr = tt.interval

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for sweep_interval=%q", tt.interval)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_InvalidWebhookURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"relative", "/hooks"},
		{"no scheme", "hooks.example.test/garryos"},
		{"wrong scheme", "ftp://hooks.example.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.WebhookURL = tt.url

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for webhook_url=%q", tt.url)
			}
			if !strings.Contains(err.Error(), "WEBHOOK_URL") {
				t.Errorf("error should mention WEBHOOK_URL: %q", err.Error())
			}
		})
	}
}

func TestValidate_ValidWebhookURL(t *testing.T) {
	cfg := validConfig()
	cfg.WebhookURL = "https://hooks.example.test/garryos"

	if err := Validate(cfg); err != nil {
		t.Errorf("https webhook URL should be valid, got: %v", err)
	}
}

func TestValidate_NonPositiveHistoryCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.EventHistoryCapacity = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero history capacity")
	}
	if !strings.Contains(err.Error(), "EVENT_HISTORY_CAPACITY") {
		t.Errorf("error should mention EVENT_HISTORY_CAPACITY: %q", err.Error())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Config{
		DatabaseURL:          "", // missing
		SweepIntervalStr:     "invalid",
		EventHistoryCapacity: 1000,
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	got := err.Error()
	want := "DATABASE_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	// Single error
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	// Multiple errors
	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	// Empty
	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
