package api

import (
	"net/http"

	ical "github.com/arran4/golang-ical"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// exportCalendar serves the user's items as an iCalendar feed. Items with
// neither a start time nor a deadline have no place on a calendar and are
// skipped; tasks with only a deadline appear at the deadline.
func (h *Handler) exportCalendar(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDField("user_id", r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.planner.ListItems(r.Context(), userID, MaxLimit, 0)
	if err != nil {
		h.writeServiceError(w, err, "export calendar")
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//garryOS//planner//EN")

	for _, item := range items {
		appendVEvent(cal, item)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="garryos.ics"`)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		return
	}
}

func appendVEvent(cal *ical.Calendar, item domain.CalendarItem) {
	start := item.StartTime
	if start == nil {
		start = item.EndTime
	}
	if start == nil {
		return
	}

	ve := cal.AddEvent(item.ID.String())
	ve.SetDtStampTime(item.UpdatedAt.UTC())
	ve.SetCreatedTime(item.CreatedAt.UTC())
	ve.SetStartAt(start.UTC())
	if item.StartTime != nil && item.EndTime != nil {
		ve.SetEndAt(item.EndTime.UTC())
	}
	ve.SetSummary(item.Title)
	if item.Description != "" {
		ve.SetDescription(item.Description)
	}
	if item.Location != "" {
		ve.SetLocation(item.Location)
	}
	if item.RecurrenceRule != "" {
		ve.AddRrule(item.RecurrenceRule)
	}
	if item.Status == domain.ItemStatusCancelled {
		ve.SetStatus(ical.ObjectStatusCancelled)
	} else {
		ve.SetStatus(ical.ObjectStatusConfirmed)
	}
}
