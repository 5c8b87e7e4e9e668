package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/cgarryZA/garryOS/internal/domain"
)

func TestValidateRecurrenceRule(t *testing.T) {
	valid := []string{
		"FREQ=DAILY",
		"FREQ=WEEKLY;BYDAY=MO,WE,FR",
		"FREQ=MONTHLY;INTERVAL=2;COUNT=6",
	}
	for _, rule := range valid {
		if err := ValidateRecurrenceRule(rule); err != nil {
			t.Errorf("ValidateRecurrenceRule(%q) = %v, want nil", rule, err)
		}
	}

	invalid := []string{"FREQ=SOMETIMES", "not a rule at all;;;"}
	for _, rule := range invalid {
		if err := ValidateRecurrenceRule(rule); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateRecurrenceRule(%q) = %v, want ErrValidation", rule, err)
		}
	}
}

func TestOccurrences(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // a Monday
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("daily rule expands within range", func(t *testing.T) {
		item := domain.CalendarItem{StartTime: &start, RecurrenceRule: "FREQ=DAILY"}
		times, err := Occurrences(item, from, to)
		if err != nil {
			t.Fatalf("Occurrences: %v", err)
		}
		// March 2 through March 14, daily at 09:00.
		if len(times) != 13 {
			t.Fatalf("occurrences = %d, want 13", len(times))
		}
		if !times[0].Equal(start) {
			t.Errorf("first occurrence = %s, want %s", times[0], start)
		}
		for i := 1; i < len(times); i++ {
			if !times[i].After(times[i-1]) {
				t.Fatalf("occurrences not chronological at %d", i)
			}
		}
	})

	t.Run("weekly rule", func(t *testing.T) {
		item := domain.CalendarItem{StartTime: &start, RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO"}
		times, err := Occurrences(item, from, to)
		if err != nil {
			t.Fatalf("Occurrences: %v", err)
		}
		if len(times) != 2 {
			t.Errorf("occurrences = %d, want 2 (Mar 2 and Mar 9)", len(times))
		}
	})

	t.Run("non-recurring inside range", func(t *testing.T) {
		item := domain.CalendarItem{StartTime: &start}
		times, err := Occurrences(item, from, to)
		if err != nil {
			t.Fatalf("Occurrences: %v", err)
		}
		if len(times) != 1 || !times[0].Equal(start) {
			t.Errorf("occurrences = %v, want [%s]", times, start)
		}
	})

	t.Run("non-recurring outside range", func(t *testing.T) {
		item := domain.CalendarItem{StartTime: &start}
		times, err := Occurrences(item, to.Add(24*time.Hour), to.Add(48*time.Hour))
		if err != nil {
			t.Fatalf("Occurrences: %v", err)
		}
		if len(times) != 0 {
			t.Errorf("occurrences = %d, want 0", len(times))
		}
	})

	t.Run("no start time", func(t *testing.T) {
		times, err := Occurrences(domain.CalendarItem{RecurrenceRule: "FREQ=DAILY"}, from, to)
		if err != nil || len(times) != 0 {
			t.Errorf("got %v, %v; want empty, nil", times, err)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		item := domain.CalendarItem{StartTime: &start}
		if _, err := Occurrences(item, to, from); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}
