package api

import (
	"time"

	"github.com/cgarryZA/garryOS/internal/degrees"
	"github.com/cgarryZA/garryOS/internal/domain"
)

type ItemRequest struct {
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartTime         *string `json:"start_time,omitempty"`
	EndTime           *string `json:"end_time,omitempty"`
	EstimatedDuration int     `json:"estimated_duration_minutes,omitempty"`

	ProgressPercent int    `json:"progress_percent,omitempty"`
	RecurrenceRule  string `json:"recurrence_rule,omitempty"`
	Location        string `json:"location,omitempty"`
	Status          string `json:"status,omitempty"`

	SourceType string `json:"source_type,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
}

type ItemResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartTime         *string `json:"start_time,omitempty"`
	EndTime           *string `json:"end_time,omitempty"`
	EstimatedDuration int     `json:"estimated_duration_minutes,omitempty"`

	ProgressPercent int    `json:"progress_percent"`
	RecurrenceRule  string `json:"recurrence_rule,omitempty"`
	Location        string `json:"location,omitempty"`

	Status      string  `json:"status"`
	CompletedAt *string `json:"completed_at,omitempty"`

	SourceType string `json:"source_type,omitempty"`
	SourceID   string `json:"source_id,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TriggerRequest struct {
	TriggerType   string         `json:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config"`
}

type TriggerResponse struct {
	ID             string         `json:"id"`
	CalendarItemID string         `json:"calendar_item_id"`
	TriggerType    string         `json:"trigger_type"`
	TriggerConfig  map[string]any `json:"trigger_config"`
	LastFiredAt    *string        `json:"last_fired_at,omitempty"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      string         `json:"created_at"`
}

type ExecutionResponse struct {
	ID        string         `json:"id"`
	TriggerID string         `json:"trigger_id"`
	FiredAt   string         `json:"fired_at"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type EventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp string         `json:"timestamp"`
}

type ProgramRequest struct {
	UserID               string   `json:"user_id"`
	Name                 string   `json:"name"`
	Institution          string   `json:"institution,omitempty"`
	TargetGrade          *float64 `json:"target_grade,omitempty"`
	TotalCreditsRequired int      `json:"total_credits_required,omitempty"`
	Status               string   `json:"status,omitempty"`
	StartDate            *string  `json:"start_date,omitempty"`
	EndDate              *string  `json:"end_date,omitempty"`
}

type ProgramResponse struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"user_id"`
	Name                 string   `json:"name"`
	Institution          string   `json:"institution,omitempty"`
	TargetGrade          *float64 `json:"target_grade,omitempty"`
	TotalCreditsRequired int      `json:"total_credits_required"`
	Status               string   `json:"status"`
	StartDate            *string  `json:"start_date,omitempty"`
	EndDate              *string  `json:"end_date,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

type ModuleRequest struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Credits      int     `json:"credits,omitempty"`
	Weighting    float64 `json:"weighting,omitempty"`
	Semester     string  `json:"semester,omitempty"`
	AcademicYear string  `json:"academic_year,omitempty"`
	Status       string  `json:"status,omitempty"`
}

type ModuleResponse struct {
	ID           string  `json:"id"`
	ProgramID    string  `json:"program_id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Credits      int     `json:"credits"`
	Weighting    float64 `json:"weighting"`
	Semester     string  `json:"semester,omitempty"`
	AcademicYear string  `json:"academic_year,omitempty"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

type CourseworkRequest struct {
	Name          string   `json:"name"`
	Weighting     float64  `json:"weighting,omitempty"`
	MaxMarks      float64  `json:"max_marks,omitempty"`
	AchievedMarks *float64 `json:"achieved_marks,omitempty"`
	Deadline      *string  `json:"deadline,omitempty"`
	Status        string   `json:"status,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
}

type CourseworkResponse struct {
	ID            string   `json:"id"`
	ModuleID      string   `json:"module_id"`
	Name          string   `json:"name"`
	Weighting     float64  `json:"weighting"`
	MaxMarks      float64  `json:"max_marks"`
	AchievedMarks *float64 `json:"achieved_marks,omitempty"`
	Deadline      *string  `json:"deadline,omitempty"`
	Status        string   `json:"status"`
	Feedback      string   `json:"feedback,omitempty"`
	SubmittedAt   *string  `json:"submitted_at,omitempty"`
	GradedAt      *string  `json:"graded_at,omitempty"`
	LinkedTaskID  *string  `json:"linked_task_id,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

type ModuleStatisticsResponse struct {
	ModuleID           string   `json:"module_id"`
	ModuleName         string   `json:"module_name"`
	CurrentAverage     *float64 `json:"current_average,omitempty"`
	CompletedWeighting float64  `json:"completed_weighting"`
	RemainingWeighting float64  `json:"remaining_weighting"`
	TotalCoursework    int      `json:"total_coursework"`
	GradedCoursework   int      `json:"graded_coursework"`
	BestCaseGrade      float64  `json:"best_case_grade"`
	WorstCaseGrade     float64  `json:"worst_case_grade"`
}

type DegreeStatisticsResponse struct {
	ProgramID        string                     `json:"program_id"`
	ProgramName      string                     `json:"program_name"`
	OverallAverage   *float64                   `json:"overall_average,omitempty"`
	CompletedCredits int                        `json:"completed_credits"`
	RemainingCredits int                        `json:"remaining_credits"`
	TotalModules     int                        `json:"total_modules"`
	CompletedModules int                        `json:"completed_modules"`
	TargetGrade      *float64                   `json:"target_grade,omitempty"`
	OnTrack          bool                       `json:"on_track"`
	BestCaseGrade    float64                    `json:"best_case_grade"`
	WorstCaseGrade   float64                    `json:"worst_case_grade"`
	Modules          []ModuleStatisticsResponse `json:"modules"`
}

type TargetGradeResponse struct {
	TargetGrade                float64 `json:"target_grade"`
	CurrentAverage             float64 `json:"current_average"`
	RequiredAverageOnRemaining float64 `json:"required_average_on_remaining"`
	Achievable                 bool    `json:"achievable"`
	Margin                     float64 `json:"margin"`
}

type ListItemsResponse struct {
	Items []ItemResponse `json:"items"`
}

type ListTriggersResponse struct {
	Triggers []TriggerResponse `json:"triggers"`
}

type ListExecutionsResponse struct {
	Executions []ExecutionResponse `json:"executions"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

type ListProgramsResponse struct {
	Programs []ProgramResponse `json:"programs"`
}

type ListModulesResponse struct {
	Modules []ModuleResponse `json:"modules"`
}

type ListCourseworkResponse struct {
	Coursework []CourseworkResponse `json:"coursework"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func itemResponse(item domain.CalendarItem) ItemResponse {
	return ItemResponse{
		ID:                item.ID.String(),
		UserID:            item.UserID.String(),
		Type:              string(item.Type),
		Title:             item.Title,
		Description:       item.Description,
		StartTime:         formatTimePtr(item.StartTime),
		EndTime:           formatTimePtr(item.EndTime),
		EstimatedDuration: item.EstimatedDuration,
		ProgressPercent:   item.ProgressPercent,
		RecurrenceRule:    item.RecurrenceRule,
		Location:          item.Location,
		Status:            string(item.Status),
		CompletedAt:       formatTimePtr(item.CompletedAt),
		SourceType:        item.SourceType,
		SourceID:          item.SourceID,
		CreatedAt:         formatTime(item.CreatedAt),
		UpdatedAt:         formatTime(item.UpdatedAt),
	}
}

func triggerResponse(trigger domain.Trigger) TriggerResponse {
	return TriggerResponse{
		ID:             trigger.ID.String(),
		CalendarItemID: trigger.CalendarItemID.String(),
		TriggerType:    string(trigger.TriggerType),
		TriggerConfig:  trigger.TriggerConfig,
		LastFiredAt:    formatTimePtr(trigger.LastFiredAt),
		IsActive:       trigger.IsActive,
		CreatedAt:      formatTime(trigger.CreatedAt),
	}
}

func executionResponse(exec domain.TriggerExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:        exec.ID.String(),
		TriggerID: exec.TriggerID.String(),
		FiredAt:   formatTime(exec.FiredAt),
		Status:    string(exec.Status),
		Result:    exec.Result,
		CreatedAt: formatTime(exec.CreatedAt),
	}
}

func eventResponse(event domain.Event) EventResponse {
	return EventResponse{
		ID:        event.ID.String(),
		Type:      event.Type,
		Payload:   event.Payload,
		Timestamp: formatTime(event.Timestamp),
	}
}

func programResponse(program domain.DegreeProgram) ProgramResponse {
	return ProgramResponse{
		ID:                   program.ID.String(),
		UserID:               program.UserID.String(),
		Name:                 program.Name,
		Institution:          program.Institution,
		TargetGrade:          program.TargetGrade,
		TotalCreditsRequired: program.TotalCreditsRequired,
		Status:               string(program.Status),
		StartDate:            formatTimePtr(program.StartDate),
		EndDate:              formatTimePtr(program.EndDate),
		CreatedAt:            formatTime(program.CreatedAt),
	}
}

func moduleResponse(module domain.Module) ModuleResponse {
	return ModuleResponse{
		ID:           module.ID.String(),
		ProgramID:    module.ProgramID.String(),
		Code:         module.Code,
		Name:         module.Name,
		Credits:      module.Credits,
		Weighting:    module.Weighting,
		Semester:     module.Semester,
		AcademicYear: module.AcademicYear,
		Status:       string(module.Status),
		CreatedAt:    formatTime(module.CreatedAt),
	}
}

func courseworkResponse(cw domain.Coursework) CourseworkResponse {
	resp := CourseworkResponse{
		ID:            cw.ID.String(),
		ModuleID:      cw.ModuleID.String(),
		Name:          cw.Name,
		Weighting:     cw.Weighting,
		MaxMarks:      cw.MaxMarks,
		AchievedMarks: cw.AchievedMarks,
		Deadline:      formatTimePtr(cw.Deadline),
		Status:        string(cw.Status),
		Feedback:      cw.Feedback,
		SubmittedAt:   formatTimePtr(cw.SubmittedAt),
		GradedAt:      formatTimePtr(cw.GradedAt),
		CreatedAt:     formatTime(cw.CreatedAt),
	}
	if cw.LinkedTaskID != nil {
		s := cw.LinkedTaskID.String()
		resp.LinkedTaskID = &s
	}
	return resp
}

func moduleStatisticsResponse(stats degrees.ModuleStatistics) ModuleStatisticsResponse {
	return ModuleStatisticsResponse{
		ModuleID:           stats.ModuleID.String(),
		ModuleName:         stats.ModuleName,
		CurrentAverage:     stats.CurrentAverage,
		CompletedWeighting: stats.CompletedWeighting,
		RemainingWeighting: stats.RemainingWeighting,
		TotalCoursework:    stats.TotalCoursework,
		GradedCoursework:   stats.GradedCoursework,
		BestCaseGrade:      stats.BestCaseGrade,
		WorstCaseGrade:     stats.WorstCaseGrade,
	}
}

func degreeStatisticsResponse(stats degrees.DegreeStatistics) DegreeStatisticsResponse {
	resp := DegreeStatisticsResponse{
		ProgramID:        stats.ProgramID.String(),
		ProgramName:      stats.ProgramName,
		OverallAverage:   stats.OverallAverage,
		CompletedCredits: stats.CompletedCredits,
		RemainingCredits: stats.RemainingCredits,
		TotalModules:     stats.TotalModules,
		CompletedModules: stats.CompletedModules,
		TargetGrade:      stats.TargetGrade,
		OnTrack:          stats.OnTrack,
		BestCaseGrade:    stats.BestCaseGrade,
		WorstCaseGrade:   stats.WorstCaseGrade,
		Modules:          make([]ModuleStatisticsResponse, len(stats.Modules)),
	}
	for i, m := range stats.Modules {
		resp.Modules[i] = moduleStatisticsResponse(m)
	}
	return resp
}
