package calendar

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/cron"
	"github.com/cgarryZA/garryOS/internal/domain"
)

const maxTitleLength = 500

var cronParser = cron.NewParser()

func validateItem(item domain.CalendarItem) error {
	if item.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if item.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(item.Title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLength)
	}

	switch item.Type {
	case domain.ItemTypeEvent, domain.ItemTypeTask, domain.ItemTypeReminder:
	default:
		return fmt.Errorf("%w: unknown item type %q", ErrValidation, item.Type)
	}

	switch item.Status {
	case "", domain.ItemStatusPending, domain.ItemStatusActive,
		domain.ItemStatusCompleted, domain.ItemStatusCancelled:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, item.Status)
	}

	if item.ProgressPercent < 0 || item.ProgressPercent > 100 {
		return fmt.Errorf("%w: progress_percent must be within [0,100]", ErrValidation)
	}
	if item.EstimatedDuration < 0 {
		return fmt.Errorf("%w: estimated_duration must not be negative", ErrValidation)
	}
	if item.StartTime != nil && item.EndTime != nil && item.EndTime.Before(*item.StartTime) {
		return fmt.Errorf("%w: end_time precedes start_time", ErrValidation)
	}

	if item.RecurrenceRule != "" {
		if item.StartTime == nil {
			return fmt.Errorf("%w: recurrence_rule requires start_time", ErrValidation)
		}
		if err := ValidateRecurrenceRule(item.RecurrenceRule); err != nil {
			return err
		}
	}

	if (item.SourceType == "") != (item.SourceID == "") {
		return fmt.Errorf("%w: source_type and source_id must be set together", ErrValidation)
	}
	return nil
}

// ValidateTriggerConfig checks the config mapping against the declared
// trigger type's required fields. A trigger that fails here is never stored.
func ValidateTriggerConfig(triggerType domain.TriggerType, config map[string]any) error {
	switch triggerType {
	case domain.TriggerTypeTime:
		return validateTimeConfig(config)
	case domain.TriggerTypeLocation:
		return validateLocationConfig(config)
	case domain.TriggerTypeProgress:
		return validateProgressConfig(config)
	case domain.TriggerTypeNFC:
		return validateNFCConfig(config)
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrValidation, triggerType)
	}
}

func validateTimeConfig(config map[string]any) error {
	_, hasFireAt := config[domain.ConfigFireAt]
	_, hasCron := config[domain.ConfigCron]

	switch {
	case !hasFireAt && !hasCron:
		return fmt.Errorf("%w: time trigger requires fire_at or cron", ErrValidation)
	case hasFireAt && hasCron:
		return fmt.Errorf("%w: time trigger accepts fire_at or cron, not both", ErrValidation)
	}

	if hasFireAt {
		trigger := domain.Trigger{TriggerConfig: config}
		if _, ok := trigger.FireAt(); !ok {
			return fmt.Errorf("%w: fire_at must be an RFC 3339 timestamp", ErrValidation)
		}
	}
	if hasCron {
		expr, ok := config[domain.ConfigCron].(string)
		if !ok || expr == "" {
			return fmt.Errorf("%w: cron must be a non-empty string", ErrValidation)
		}
		if err := cronParser.Validate(expr); err != nil {
			return fmt.Errorf("%w: invalid cron expression: %v", ErrValidation, err)
		}
	}
	if raw, ok := config[domain.ConfigRepeat]; ok {
		if _, isBool := raw.(bool); !isBool {
			return fmt.Errorf("%w: repeat must be a boolean", ErrValidation)
		}
	}
	return nil
}

func validateLocationConfig(config map[string]any) error {
	lat, err := numberField(config, domain.ConfigLatitude)
	if err != nil {
		return err
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be within [-90,90]", ErrValidation)
	}

	lon, err := numberField(config, domain.ConfigLongitude)
	if err != nil {
		return err
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude must be within [-180,180]", ErrValidation)
	}

	radius, err := numberField(config, domain.ConfigRadiusMeters)
	if err != nil {
		return err
	}
	if radius <= 0 {
		return fmt.Errorf("%w: radius_meters must be positive", ErrValidation)
	}
	return nil
}

func validateProgressConfig(config map[string]any) error {
	threshold, err := numberField(config, domain.ConfigThreshold)
	if err != nil {
		return err
	}
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("%w: threshold_percent must be within [0,100]", ErrValidation)
	}
	return nil
}

func validateNFCConfig(config map[string]any) error {
	tagID, ok := config[domain.ConfigTagID].(string)
	if !ok || tagID == "" {
		return fmt.Errorf("%w: nfc trigger requires tag_id", ErrValidation)
	}
	return nil
}

// numberField extracts a numeric config value. JSON decoding yields float64,
// values built in code may be untyped ints.
func numberField(config map[string]any, key string) (float64, error) {
	raw, ok := config[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrValidation, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrValidation, key)
	}
}
