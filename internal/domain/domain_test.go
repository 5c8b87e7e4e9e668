package domain

import (
	"testing"
	"time"
)

func TestCourseworkStatus_IsFinal(t *testing.T) {
	tests := []struct {
		status CourseworkStatus
		want   bool
	}{
		{CourseworkStatusNotStarted, false},
		{CourseworkStatusInProgress, false},
		{CourseworkStatusSubmitted, true},
		{CourseworkStatusGraded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsFinal(); got != tt.want {
				t.Errorf("IsFinal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrigger_FireAt(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   time.Time
		ok     bool
	}{
		{
			name:   "valid RFC3339",
			config: map[string]any{ConfigFireAt: "2026-03-01T09:30:00Z"},
			want:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			ok:     true,
		},
		{
			name:   "offset normalised to UTC",
			config: map[string]any{ConfigFireAt: "2026-03-01T10:30:00+01:00"},
			want:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			ok:     true,
		},
		{
			name:   "missing",
			config: map[string]any{},
			ok:     false,
		},
		{
			name:   "not a string",
			config: map[string]any{ConfigFireAt: 1234},
			ok:     false,
		},
		{
			name:   "unparseable",
			config: map[string]any{ConfigFireAt: "tomorrow"},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := Trigger{TriggerType: TriggerTypeTime, TriggerConfig: tt.config}
			got, ok := trig.FireAt()
			if ok != tt.ok {
				t.Fatalf("FireAt() ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("FireAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrigger_Repeats(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   bool
	}{
		{"repeat true", map[string]any{ConfigRepeat: true}, true},
		{"repeat false", map[string]any{ConfigRepeat: false}, false},
		{"unset", map[string]any{}, false},
		{"wrong type", map[string]any{ConfigRepeat: "yes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := Trigger{TriggerConfig: tt.config}
			if got := trig.Repeats(); got != tt.want {
				t.Errorf("Repeats() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoursework_Percentage(t *testing.T) {
	marks := 68.0
	cw := Coursework{AchievedMarks: &marks, MaxMarks: 80}
	if got := cw.Percentage(); got != 85 {
		t.Errorf("Percentage() = %v, want 85", got)
	}

	ungraded := Coursework{MaxMarks: 80}
	if got := ungraded.Percentage(); got != 0 {
		t.Errorf("Percentage() ungraded = %v, want 0", got)
	}
}
