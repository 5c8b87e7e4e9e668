package domain

import (
	"time"

	"github.com/google/uuid"
)

type CalendarItemType string

const (
	ItemTypeEvent    CalendarItemType = "event"
	ItemTypeTask     CalendarItemType = "task"
	ItemTypeReminder CalendarItemType = "reminder"
)

type CalendarItemStatus string

const (
	ItemStatusPending   CalendarItemStatus = "pending"
	ItemStatusActive    CalendarItemStatus = "active"
	ItemStatusCompleted CalendarItemStatus = "completed"
	ItemStatusCancelled CalendarItemStatus = "cancelled"
)

// SourceCoursework marks a calendar item as a lookup-only link to a
// coursework record. The link carries no ownership: deleting either side
// never cascades to the other.
const SourceCoursework = "coursework"

// CalendarItem is the unified model for events, tasks, and reminders.
// Tasks track progress; reminders carry triggers; events carry a time range.
type CalendarItem struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Type        CalendarItemType
	Title       string
	Description string

	StartTime         *time.Time
	EndTime           *time.Time
	EstimatedDuration int // minutes, 0 = unset

	ProgressPercent int
	RecurrenceRule  string // RRULE, empty = non-recurring
	Location        string

	Status      CalendarItemStatus
	CompletedAt *time.Time

	// Weak reference to an externally owned record (e.g. coursework).
	SourceType string
	SourceID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCourseworkLinked reports whether the item references a coursework record.
func (i CalendarItem) IsCourseworkLinked() bool {
	return i.SourceType == SourceCoursework && i.SourceID != ""
}
