package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// maxOccurrences caps expansion so a DAILY rule over a wide query range
// cannot balloon a response.
const maxOccurrences = 1000

// ValidateRecurrenceRule checks an RRULE string (e.g. "FREQ=WEEKLY;BYDAY=MO")
// at creation time.
func ValidateRecurrenceRule(rule string) error {
	if _, err := rrule.StrToRRule(rule); err != nil {
		return fmt.Errorf("%w: invalid recurrence_rule: %v", ErrValidation, err)
	}
	return nil
}

// Occurrences expands a recurring item's start times within [from, to],
// inclusive, in chronological order. A non-recurring item yields its own
// start time when it falls inside the range.
func Occurrences(item domain.CalendarItem, from, to time.Time) ([]time.Time, error) {
	if item.StartTime == nil {
		return nil, nil
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: occurrence range end precedes start", ErrValidation)
	}

	start := item.StartTime.UTC()
	if item.RecurrenceRule == "" {
		if start.Before(from) || start.After(to) {
			return nil, nil
		}
		return []time.Time{start}, nil
	}

	r, err := rrule.StrToRRule(item.RecurrenceRule)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recurrence_rule: %v", ErrValidation, err)
	}
	r.DTStart(start)

	times := r.Between(from.UTC(), to.UTC(), true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}
	return times, nil
}
