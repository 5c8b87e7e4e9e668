package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerTypeTime     TriggerType = "time"
	TriggerTypeLocation TriggerType = "location"
	TriggerTypeProgress TriggerType = "progress"
	TriggerTypeNFC      TriggerType = "nfc"
)

// Trigger config keys. The config mapping is validated against the declared
// trigger type at creation time; only TIME triggers are evaluated by the
// scheduler, the remaining types are stored as extension points.
const (
	ConfigFireAt       = "fire_at"
	ConfigCron         = "cron"
	ConfigRepeat       = "repeat"
	ConfigLatitude     = "latitude"
	ConfigLongitude    = "longitude"
	ConfigRadiusMeters = "radius_meters"
	ConfigThreshold    = "threshold_percent"
	ConfigTagID        = "tag_id"
)

// Trigger is a stored condition attached to exactly one calendar item.
// Deleting the item cascades its triggers.
type Trigger struct {
	ID             uuid.UUID
	CalendarItemID uuid.UUID

	TriggerType   TriggerType
	TriggerConfig map[string]any

	LastFiredAt *time.Time
	IsActive    bool

	CreatedAt time.Time
}

// FireAt returns the configured fire time for a TIME trigger, or false when
// the config carries no parseable fire_at.
func (t Trigger) FireAt() (time.Time, bool) {
	raw, ok := t.TriggerConfig[ConfigFireAt]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return at.UTC(), true
}

// CronExpression returns the configured cron expression, or false when unset.
func (t Trigger) CronExpression() (string, bool) {
	raw, ok := t.TriggerConfig[ConfigCron]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok && s != ""
}

// Repeats reports whether the trigger is configured to fire repeatedly.
func (t Trigger) Repeats() bool {
	repeat, ok := t.TriggerConfig[ConfigRepeat].(bool)
	return ok && repeat
}
