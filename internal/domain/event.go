package domain

import (
	"time"

	"github.com/google/uuid"
)

// Standard event types published across the system.
const (
	EventItemCreated   = "item.created"
	EventItemUpdated   = "item.updated"
	EventItemDeleted   = "item.deleted"
	EventItemCompleted = "item.completed"

	EventTriggerCreated = "trigger.created"
	EventTriggerFired   = "trigger.fired"
	EventTriggerDeleted = "trigger.deleted"
)

// Event is an immutable domain fact. Instances are created by the event bus
// on publish and never mutated afterwards.
type Event struct {
	ID        uuid.UUID
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}
