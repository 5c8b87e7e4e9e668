package api

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestItemFromRequest(t *testing.T) {
	userID := uuid.New()
	start := "2026-09-01T10:00:00+01:00"

	item, err := itemFromRequest(ItemRequest{
		UserID:    userID.String(),
		Type:      "event",
		Title:     "Lecture",
		StartTime: &start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, item.UserID)
	}
	if item.StartTime == nil {
		t.Fatal("expected parsed start time")
	}
	// Offsets are normalised to UTC.
	want := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	if !item.StartTime.Equal(want) {
		t.Errorf("expected %v, got %v", want, *item.StartTime)
	}
}

func TestItemFromRequest_Errors(t *testing.T) {
	bad := "yesterday"

	tests := []struct {
		name string
		req  ItemRequest
	}{
		{"empty user_id", ItemRequest{Title: "x"}},
		{"malformed user_id", ItemRequest{UserID: "nope", Title: "x"}},
		{"malformed start_time", ItemRequest{UserID: uuid.NewString(), StartTime: &bad}},
		{"malformed end_time", ItemRequest{UserID: uuid.NewString(), EndTime: &bad}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := itemFromRequest(tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProgramFromRequest(t *testing.T) {
	userID := uuid.New()
	startDate := "2024-09-23T00:00:00Z"
	target := 70.0

	program, err := programFromRequest(ProgramRequest{
		UserID:      userID.String(),
		Name:        "BSc Computer Science",
		TargetGrade: &target,
		StartDate:   &startDate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if program.TargetGrade == nil || *program.TargetGrade != 70 {
		t.Errorf("expected target grade 70, got %v", program.TargetGrade)
	}
	if program.StartDate == nil || !program.StartDate.Equal(time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date: %v", program.StartDate)
	}
}

func TestCourseworkFromRequest_MalformedDeadline(t *testing.T) {
	deadline := "next friday"
	if _, err := courseworkFromRequest(CourseworkRequest{Name: "CW1", Deadline: &deadline}); err == nil {
		t.Error("expected error for malformed deadline")
	}
}

func TestParseTimeField_EmptyIsNil(t *testing.T) {
	empty := ""
	for _, value := range []*string{nil, &empty} {
		got, err := parseTimeField("start_time", value)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for empty value, got %v", got)
		}
	}
}
