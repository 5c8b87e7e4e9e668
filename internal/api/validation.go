package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// Request decoding rejects malformed field formats here; the domain rules
// (ranges, cross-field constraints) live in the service validators.

func itemFromRequest(req ItemRequest) (domain.CalendarItem, error) {
	userID, err := parseUUIDField("user_id", req.UserID)
	if err != nil {
		return domain.CalendarItem{}, err
	}
	start, err := parseTimeField("start_time", req.StartTime)
	if err != nil {
		return domain.CalendarItem{}, err
	}
	end, err := parseTimeField("end_time", req.EndTime)
	if err != nil {
		return domain.CalendarItem{}, err
	}

	return domain.CalendarItem{
		UserID:            userID,
		Type:              domain.CalendarItemType(req.Type),
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         start,
		EndTime:           end,
		EstimatedDuration: req.EstimatedDuration,
		ProgressPercent:   req.ProgressPercent,
		RecurrenceRule:    req.RecurrenceRule,
		Location:          req.Location,
		Status:            domain.CalendarItemStatus(req.Status),
		SourceType:        req.SourceType,
		SourceID:          req.SourceID,
	}, nil
}

func programFromRequest(req ProgramRequest) (domain.DegreeProgram, error) {
	userID, err := parseUUIDField("user_id", req.UserID)
	if err != nil {
		return domain.DegreeProgram{}, err
	}
	start, err := parseTimeField("start_date", req.StartDate)
	if err != nil {
		return domain.DegreeProgram{}, err
	}
	end, err := parseTimeField("end_date", req.EndDate)
	if err != nil {
		return domain.DegreeProgram{}, err
	}

	return domain.DegreeProgram{
		UserID:               userID,
		Name:                 req.Name,
		Institution:          req.Institution,
		TargetGrade:          req.TargetGrade,
		TotalCreditsRequired: req.TotalCreditsRequired,
		Status:               domain.DegreeStatus(req.Status),
		StartDate:            start,
		EndDate:              end,
	}, nil
}

func moduleFromRequest(programID uuid.UUID, req ModuleRequest) domain.Module {
	return domain.Module{
		ProgramID:    programID,
		Code:         req.Code,
		Name:         req.Name,
		Credits:      req.Credits,
		Weighting:    req.Weighting,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       domain.ModuleStatus(req.Status),
	}
}

func courseworkFromRequest(req CourseworkRequest) (domain.Coursework, error) {
	deadline, err := parseTimeField("deadline", req.Deadline)
	if err != nil {
		return domain.Coursework{}, err
	}

	return domain.Coursework{
		Name:          req.Name,
		Weighting:     req.Weighting,
		MaxMarks:      req.MaxMarks,
		AchievedMarks: req.AchievedMarks,
		Deadline:      deadline,
		Status:        domain.CourseworkStatus(req.Status),
		Feedback:      req.Feedback,
	}, nil
}

func parseUUIDField(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", field)
	}
	return id, nil
}

func parseTimeField(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", field)
	}
	t = t.UTC()
	return &t, nil
}
