package domain

import (
	"time"

	"github.com/google/uuid"
)

type DegreeStatus string

const (
	DegreeStatusInProgress DegreeStatus = "in_progress"
	DegreeStatusCompleted  DegreeStatus = "completed"
	DegreeStatusDeferred   DegreeStatus = "deferred"
)

type ModuleStatus string

const (
	ModuleStatusUpcoming   ModuleStatus = "upcoming"
	ModuleStatusInProgress ModuleStatus = "in_progress"
	ModuleStatusCompleted  ModuleStatus = "completed"
)

type CourseworkStatus string

const (
	CourseworkStatusNotStarted CourseworkStatus = "not_started"
	CourseworkStatusInProgress CourseworkStatus = "in_progress"
	CourseworkStatusSubmitted  CourseworkStatus = "submitted"
	CourseworkStatusGraded     CourseworkStatus = "graded"
)

// IsFinal reports whether the status is terminal for submission purposes.
// Task-completion sync must never regress a final coursework status.
func (s CourseworkStatus) IsFinal() bool {
	return s == CourseworkStatusSubmitted || s == CourseworkStatusGraded
}

// DegreeProgram represents a degree (e.g. "BSc Computer Science").
type DegreeProgram struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Name                 string
	Institution          string
	TargetGrade          *float64
	TotalCreditsRequired int
	Status               DegreeStatus

	StartDate *time.Time
	EndDate   *time.Time

	CreatedAt time.Time
}

// Module is a course within a degree program.
type Module struct {
	ID        uuid.UUID
	ProgramID uuid.UUID

	Code         string
	Name         string
	Credits      int
	Weighting    float64 // percent contribution to the degree
	Semester     string
	AcademicYear string
	Status       ModuleStatus

	CreatedAt time.Time
}

// Coursework is an assessed piece of work within a module. It is owned by
// the degree tracker; the calendar links to it only through the item's weak
// source reference plus LinkedTaskID on this side.
type Coursework struct {
	ID       uuid.UUID
	ModuleID uuid.UUID

	Name      string
	Weighting float64 // percent contribution to the module
	MaxMarks  float64

	AchievedMarks *float64
	Deadline      *time.Time
	Status        CourseworkStatus
	Feedback      string

	SubmittedAt *time.Time
	GradedAt    *time.Time

	// LinkedTaskID points at the auto-created calendar task, if any.
	LinkedTaskID *uuid.UUID

	CreatedAt time.Time
}

// IsGraded reports whether marks have been recorded.
func (c Coursework) IsGraded() bool {
	return c.AchievedMarks != nil
}

// Percentage returns achieved marks as a percentage of max marks.
func (c Coursework) Percentage() float64 {
	if c.AchievedMarks == nil || c.MaxMarks <= 0 {
		return 0
	}
	return *c.AchievedMarks / c.MaxMarks * 100
}
