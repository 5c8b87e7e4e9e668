package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/calendar"
	"github.com/cgarryZA/garryOS/internal/degrees"
	"github.com/cgarryZA/garryOS/internal/domain"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// CalendarService is the planner surface the handler depends on.
type CalendarService interface {
	CreateItem(ctx context.Context, item domain.CalendarItem) (domain.CalendarItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)
	ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CalendarItem, error)
	UpdateItem(ctx context.Context, item domain.CalendarItem) (domain.CalendarItem, error)
	CompleteItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error

	CreateTrigger(ctx context.Context, itemID uuid.UUID, triggerType domain.TriggerType, config map[string]any) (domain.Trigger, error)
	GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error)
	ListTriggers(ctx context.Context, itemID uuid.UUID) ([]domain.Trigger, error)
	DeleteTrigger(ctx context.Context, id uuid.UUID) error
	ListExecutions(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerExecution, error)
}

// DegreeService is the degree-tracker surface the handler depends on.
type DegreeService interface {
	CreateProgram(ctx context.Context, program domain.DegreeProgram) (domain.DegreeProgram, error)
	GetProgram(ctx context.Context, id uuid.UUID) (domain.DegreeProgram, error)
	ListPrograms(ctx context.Context, userID uuid.UUID) ([]domain.DegreeProgram, error)
	UpdateProgram(ctx context.Context, program domain.DegreeProgram) (domain.DegreeProgram, error)
	DeleteProgram(ctx context.Context, id uuid.UUID) error

	CreateModule(ctx context.Context, module domain.Module) (domain.Module, error)
	GetModule(ctx context.Context, id uuid.UUID) (domain.Module, error)
	ListModules(ctx context.Context, programID uuid.UUID) ([]domain.Module, error)
	UpdateModule(ctx context.Context, module domain.Module) (domain.Module, error)
	DeleteModule(ctx context.Context, id uuid.UUID) error

	CreateCoursework(ctx context.Context, moduleID uuid.UUID, coursework domain.Coursework) (domain.Coursework, error)
	GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error)
	ListCoursework(ctx context.Context, moduleID uuid.UUID) ([]domain.Coursework, error)
	UpdateCoursework(ctx context.Context, coursework domain.Coursework) (domain.Coursework, error)
	DeleteCoursework(ctx context.Context, id uuid.UUID) error

	ModuleStatistics(ctx context.Context, moduleID uuid.UUID) (degrees.ModuleStatistics, error)
	DegreeStatistics(ctx context.Context, programID uuid.UUID) (degrees.DegreeStatistics, error)
	TargetGrade(ctx context.Context, programID uuid.UUID, target float64) (degrees.TargetGradeCalculation, error)
}

// EventHistory exposes the bus's bounded in-memory history.
type EventHistory interface {
	History(eventType string, limit int) []domain.Event
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// LeaderInfo reports whether this instance runs the singleton duties.
type LeaderInfo interface {
	IsLeader() bool
}

type Handler struct {
	planner CalendarService
	degrees DegreeService
	events  EventHistory
	db      HealthChecker
	leader  LeaderInfo
}

func NewHandler(planner CalendarService, degrees DegreeService, events EventHistory) *Handler {
	return &Handler{planner: planner, degrees: degrees, events: events}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithLeaderInfo adds leadership status to verbose /health responses.
func (h *Handler) WithLeaderInfo(leader LeaderInfo) *Handler {
	h.leader = leader
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch parts[0] {
	case "health":
		if len(parts) == 1 && r.Method == http.MethodGet {
			h.health(w, r)
			return
		}
	case "items":
		h.routeItems(w, r, parts)
		return
	case "triggers":
		h.routeTriggers(w, r, parts)
		return
	case "events":
		if len(parts) == 1 && r.Method == http.MethodGet {
			h.listEvents(w, r)
			return
		}
	case "export":
		if len(parts) == 2 && parts[1] == "calendar.ics" && r.Method == http.MethodGet {
			h.exportCalendar(w, r)
			return
		}
	case "degrees":
		h.routeDegrees(w, r, parts)
		return
	case "modules":
		h.routeModules(w, r, parts)
		return
	case "coursework":
		h.routeCoursework(w, r, parts)
		return
	}

	writeError(w, http.StatusNotFound, "not found")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	if h.leader != nil {
		if h.leader.IsLeader() {
			resp.Components["leader"] = "leading"
		} else {
			resp.Components["leader"] = "following"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) routeItems(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createItem(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listItems(w, r)
	case len(parts) == 2:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getItem(w, r, id)
		case http.MethodPut:
			h.updateItem(w, r, id)
		case http.MethodDelete:
			h.deleteItem(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	case len(parts) == 3 && parts[2] == "complete" && r.Method == http.MethodPost:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		h.completeItem(w, r, id)
	case len(parts) == 3 && parts[2] == "triggers":
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodPost:
			h.createTrigger(w, r, id)
		case http.MethodGet:
			h.listTriggers(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeTriggers(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 2:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getTrigger(w, r, id)
		case http.MethodDelete:
			h.deleteTrigger(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	case len(parts) == 3 && parts[2] == "executions" && r.Method == http.MethodGet:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		h.listExecutions(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeDegrees(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createProgram(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listPrograms(w, r)
	case len(parts) == 2:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getProgram(w, r, id)
		case http.MethodPut:
			h.updateProgram(w, r, id)
		case http.MethodDelete:
			h.deleteProgram(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	case len(parts) == 3:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch {
		case parts[2] == "statistics" && r.Method == http.MethodGet:
			h.degreeStatistics(w, r, id)
		case parts[2] == "target-grade" && r.Method == http.MethodGet:
			h.targetGrade(w, r, id)
		case parts[2] == "modules" && r.Method == http.MethodPost:
			h.createModule(w, r, id)
		case parts[2] == "modules" && r.Method == http.MethodGet:
			h.listModules(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeModules(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 2:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getModule(w, r, id)
		case http.MethodPut:
			h.updateModule(w, r, id)
		case http.MethodDelete:
			h.deleteModule(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	case len(parts) == 3:
		id, ok := parseIDSegment(w, parts[1])
		if !ok {
			return
		}
		switch {
		case parts[2] == "statistics" && r.Method == http.MethodGet:
			h.moduleStatistics(w, r, id)
		case parts[2] == "coursework" && r.Method == http.MethodPost:
			h.createCoursework(w, r, id)
		case parts[2] == "coursework" && r.Method == http.MethodGet:
			h.listCoursework(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeCoursework(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, ok := parseIDSegment(w, parts[1])
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getCoursework(w, r, id)
	case http.MethodPut:
		h.updateCoursework(w, r, id)
	case http.MethodDelete:
		h.deleteCoursework(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := itemFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.planner.CreateItem(r.Context(), item)
	if err != nil {
		h.writeServiceError(w, err, "create item")
		return
	}
	writeJSON(w, http.StatusCreated, itemResponse(created))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	item, err := h.planner.GetItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get item")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDField("user_id", r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.planner.ListItems(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "list items")
		return
	}

	resp := ListItemsResponse{Items: make([]ItemResponse, len(items))}
	for i, item := range items {
		resp.Items[i] = itemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := itemFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ID = id

	updated, err := h.planner.UpdateItem(r.Context(), item)
	if err != nil {
		h.writeServiceError(w, err, "update item")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(updated))
}

func (h *Handler) completeItem(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	item, err := h.planner.CompleteItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "complete item")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.planner.DeleteItem(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createTrigger(w http.ResponseWriter, r *http.Request, itemID uuid.UUID) {
	var req TriggerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	trigger, err := h.planner.CreateTrigger(r.Context(), itemID, domain.TriggerType(req.TriggerType), req.TriggerConfig)
	if err != nil {
		h.writeServiceError(w, err, "create trigger")
		return
	}
	writeJSON(w, http.StatusCreated, triggerResponse(trigger))
}

func (h *Handler) getTrigger(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	trigger, err := h.planner.GetTrigger(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get trigger")
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse(trigger))
}

func (h *Handler) listTriggers(w http.ResponseWriter, r *http.Request, itemID uuid.UUID) {
	triggers, err := h.planner.ListTriggers(r.Context(), itemID)
	if err != nil {
		h.writeServiceError(w, err, "list triggers")
		return
	}

	resp := ListTriggersResponse{Triggers: make([]TriggerResponse, len(triggers))}
	for i, trigger := range triggers {
		resp.Triggers[i] = triggerResponse(trigger)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteTrigger(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.planner.DeleteTrigger(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete trigger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExecutions(w http.ResponseWriter, r *http.Request, triggerID uuid.UUID) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	executions, err := h.planner.ListExecutions(r.Context(), triggerID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "list executions")
		return
	}

	resp := ListExecutionsResponse{Executions: make([]ExecutionResponse, len(executions))}
	for i, exec := range executions {
		resp.Executions[i] = executionResponse(exec)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n > MaxLimit {
			writeError(w, http.StatusBadRequest, (&limitExceededError{max: MaxLimit}).Error())
			return
		}
		if n > 0 {
			limit = n
		}
	}

	events := h.events.History(r.URL.Query().Get("type"), limit)

	resp := ListEventsResponse{Events: make([]EventResponse, len(events))}
	for i, event := range events {
		resp.Events[i] = eventResponse(event)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createProgram(w http.ResponseWriter, r *http.Request) {
	var req ProgramRequest
	if !decodeBody(w, r, &req) {
		return
	}

	program, err := programFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.degrees.CreateProgram(r.Context(), program)
	if err != nil {
		h.writeServiceError(w, err, "create program")
		return
	}
	writeJSON(w, http.StatusCreated, programResponse(created))
}

func (h *Handler) getProgram(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	program, err := h.degrees.GetProgram(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get program")
		return
	}
	writeJSON(w, http.StatusOK, programResponse(program))
}

func (h *Handler) listPrograms(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDField("user_id", r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	programs, err := h.degrees.ListPrograms(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list programs")
		return
	}

	resp := ListProgramsResponse{Programs: make([]ProgramResponse, len(programs))}
	for i, program := range programs {
		resp.Programs[i] = programResponse(program)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateProgram(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ProgramRequest
	if !decodeBody(w, r, &req) {
		return
	}

	program, err := programFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	program.ID = id

	updated, err := h.degrees.UpdateProgram(r.Context(), program)
	if err != nil {
		h.writeServiceError(w, err, "update program")
		return
	}
	writeJSON(w, http.StatusOK, programResponse(updated))
}

func (h *Handler) deleteProgram(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.degrees.DeleteProgram(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete program")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) degreeStatistics(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	stats, err := h.degrees.DegreeStatistics(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "degree statistics")
		return
	}
	writeJSON(w, http.StatusOK, degreeStatisticsResponse(stats))
}

func (h *Handler) targetGrade(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	target, err := strconv.ParseFloat(r.URL.Query().Get("target"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "target must be a number")
		return
	}

	calc, err := h.degrees.TargetGrade(r.Context(), id, target)
	if err != nil {
		h.writeServiceError(w, err, "target grade")
		return
	}
	writeJSON(w, http.StatusOK, TargetGradeResponse{
		TargetGrade:                calc.TargetGrade,
		CurrentAverage:             calc.CurrentAverage,
		RequiredAverageOnRemaining: calc.RequiredAverageOnRemaining,
		Achievable:                 calc.Achievable,
		Margin:                     calc.Margin,
	})
}

func (h *Handler) createModule(w http.ResponseWriter, r *http.Request, programID uuid.UUID) {
	var req ModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.degrees.CreateModule(r.Context(), moduleFromRequest(programID, req))
	if err != nil {
		h.writeServiceError(w, err, "create module")
		return
	}
	writeJSON(w, http.StatusCreated, moduleResponse(created))
}

func (h *Handler) getModule(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	module, err := h.degrees.GetModule(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get module")
		return
	}
	writeJSON(w, http.StatusOK, moduleResponse(module))
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request, programID uuid.UUID) {
	modules, err := h.degrees.ListModules(r.Context(), programID)
	if err != nil {
		h.writeServiceError(w, err, "list modules")
		return
	}

	resp := ListModulesResponse{Modules: make([]ModuleResponse, len(modules))}
	for i, module := range modules {
		resp.Modules[i] = moduleResponse(module)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateModule(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	module := moduleFromRequest(uuid.Nil, req)
	module.ID = id

	updated, err := h.degrees.UpdateModule(r.Context(), module)
	if err != nil {
		h.writeServiceError(w, err, "update module")
		return
	}
	writeJSON(w, http.StatusOK, moduleResponse(updated))
}

func (h *Handler) deleteModule(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.degrees.DeleteModule(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete module")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) moduleStatistics(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	stats, err := h.degrees.ModuleStatistics(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "module statistics")
		return
	}
	writeJSON(w, http.StatusOK, moduleStatisticsResponse(stats))
}

func (h *Handler) createCoursework(w http.ResponseWriter, r *http.Request, moduleID uuid.UUID) {
	var req CourseworkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	coursework, err := courseworkFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.degrees.CreateCoursework(r.Context(), moduleID, coursework)
	if err != nil {
		h.writeServiceError(w, err, "create coursework")
		return
	}
	writeJSON(w, http.StatusCreated, courseworkResponse(created))
}

func (h *Handler) getCoursework(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	coursework, err := h.degrees.GetCoursework(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get coursework")
		return
	}
	writeJSON(w, http.StatusOK, courseworkResponse(coursework))
}

func (h *Handler) listCoursework(w http.ResponseWriter, r *http.Request, moduleID uuid.UUID) {
	coursework, err := h.degrees.ListCoursework(r.Context(), moduleID)
	if err != nil {
		h.writeServiceError(w, err, "list coursework")
		return
	}

	resp := ListCourseworkResponse{Coursework: make([]CourseworkResponse, len(coursework))}
	for i, cw := range coursework {
		resp.Coursework[i] = courseworkResponse(cw)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateCoursework(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req CourseworkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	coursework, err := courseworkFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	coursework.ID = id

	updated, err := h.degrees.UpdateCoursework(r.Context(), coursework)
	if err != nil {
		h.writeServiceError(w, err, "update coursework")
		return
	}
	writeJSON(w, http.StatusOK, courseworkResponse(updated))
}

func (h *Handler) deleteCoursework(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.degrees.DeleteCoursework(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete coursework")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors onto HTTP statuses. Validation
// details are safe to echo; anything else is logged and hidden.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, calendar.ErrValidation), errors.Is(err, degrees.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a size-limited JSON request body. Returns false after
// writing the error response.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseIDSegment(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
