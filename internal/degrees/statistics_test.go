package degrees

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func gradedCoursework(moduleID uuid.UUID, weighting, maxMarks, achieved float64) domain.Coursework {
	return domain.Coursework{
		ID:            uuid.New(),
		ModuleID:      moduleID,
		Name:          "cw",
		Weighting:     weighting,
		MaxMarks:      maxMarks,
		AchievedMarks: &achieved,
		Status:        domain.CourseworkStatusGraded,
	}
}

func TestComputeModuleStatistics(t *testing.T) {
	module := domain.Module{ID: uuid.New(), Name: "Algorithms"}

	t.Run("no coursework", func(t *testing.T) {
		stats := computeModuleStatistics(module, nil)
		if stats.CurrentAverage != nil {
			t.Error("CurrentAverage should be nil with nothing graded")
		}
		if stats.BestCaseGrade != 0 || stats.WorstCaseGrade != 0 {
			t.Errorf("best/worst = %v/%v, want 0/0", stats.BestCaseGrade, stats.WorstCaseGrade)
		}
	})

	t.Run("partially graded", func(t *testing.T) {
		coursework := []domain.Coursework{
			gradedCoursework(module.ID, 40, 100, 80), // 80% on 40% weight
			gradedCoursework(module.ID, 20, 50, 30),  // 60% on 20% weight
			{ID: uuid.New(), ModuleID: module.ID, Name: "exam", Weighting: 40, MaxMarks: 100},
		}
		stats := computeModuleStatistics(module, coursework)

		if stats.TotalCoursework != 3 || stats.GradedCoursework != 2 {
			t.Errorf("counts = %d/%d, want 3/2", stats.TotalCoursework, stats.GradedCoursework)
		}
		if !almostEqual(stats.CompletedWeighting, 60) || !almostEqual(stats.RemainingWeighting, 40) {
			t.Errorf("weightings = %v/%v, want 60/40", stats.CompletedWeighting, stats.RemainingWeighting)
		}
		// Contribution: 80*0.4 + 60*0.2 = 44 points of 60 graded.
		if stats.CurrentAverage == nil || !almostEqual(*stats.CurrentAverage, 44.0/60*100) {
			t.Errorf("CurrentAverage = %v, want %v", stats.CurrentAverage, 44.0/60*100)
		}
		if !almostEqual(stats.BestCaseGrade, 84) {
			t.Errorf("BestCaseGrade = %v, want 84", stats.BestCaseGrade)
		}
		if !almostEqual(stats.WorstCaseGrade, 44) {
			t.Errorf("WorstCaseGrade = %v, want 44", stats.WorstCaseGrade)
		}
	})

	t.Run("fully graded", func(t *testing.T) {
		coursework := []domain.Coursework{
			gradedCoursework(module.ID, 50, 100, 70),
			gradedCoursework(module.ID, 50, 100, 90),
		}
		stats := computeModuleStatistics(module, coursework)
		if stats.CurrentAverage == nil || !almostEqual(*stats.CurrentAverage, 80) {
			t.Errorf("CurrentAverage = %v, want 80", stats.CurrentAverage)
		}
		if !almostEqual(stats.BestCaseGrade, 80) || !almostEqual(stats.WorstCaseGrade, 80) {
			t.Errorf("best/worst = %v/%v, want 80/80", stats.BestCaseGrade, stats.WorstCaseGrade)
		}
	})
}

func statsFixture(t *testing.T) (*Service, uuid.UUID) {
	t.Helper()
	store := newMockStore()
	svc := New(store)

	target := 70.0
	program, err := svc.CreateProgram(context.Background(), domain.DegreeProgram{
		UserID:               uuid.New(),
		Name:                 "BSc Computer Science",
		TargetGrade:          &target,
		TotalCreditsRequired: 360,
	})
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}

	// Module A: 50% of the degree, fully graded at 80%.
	moduleA, err := svc.CreateModule(context.Background(), domain.Module{
		ProgramID: program.ID, Code: "CS201", Name: "Algorithms",
		Credits: 20, Weighting: 50, Status: domain.ModuleStatusCompleted,
	})
	if err != nil {
		t.Fatalf("CreateModule A: %v", err)
	}
	marks := 80.0
	if _, err := svc.CreateCoursework(context.Background(), moduleA.ID, domain.Coursework{
		Name: "Exam", Weighting: 100, MaxMarks: 100, AchievedMarks: &marks,
	}); err != nil {
		t.Fatalf("CreateCoursework A: %v", err)
	}

	// Module B: 50% of the degree, nothing graded yet.
	moduleB, err := svc.CreateModule(context.Background(), domain.Module{
		ProgramID: program.ID, Code: "CS202", Name: "Databases",
		Credits: 20, Weighting: 50,
	})
	if err != nil {
		t.Fatalf("CreateModule B: %v", err)
	}
	if _, err := svc.CreateCoursework(context.Background(), moduleB.ID, domain.Coursework{
		Name: "Project", Weighting: 100, MaxMarks: 100,
	}); err != nil {
		t.Fatalf("CreateCoursework B: %v", err)
	}

	return svc, program.ID
}

func TestDegreeStatistics(t *testing.T) {
	svc, programID := statsFixture(t)

	stats, err := svc.DegreeStatistics(context.Background(), programID)
	if err != nil {
		t.Fatalf("DegreeStatistics: %v", err)
	}

	if stats.TotalModules != 2 || stats.CompletedModules != 1 {
		t.Errorf("modules = %d/%d, want 2/1", stats.TotalModules, stats.CompletedModules)
	}
	if stats.CompletedCredits != 20 || stats.RemainingCredits != 340 {
		t.Errorf("credits = %d/%d, want 20/340", stats.CompletedCredits, stats.RemainingCredits)
	}
	// Only module A contributes: 80 * 50/100 = 40 points.
	if stats.OverallAverage == nil || !almostEqual(*stats.OverallAverage, 40) {
		t.Errorf("OverallAverage = %v, want 40", stats.OverallAverage)
	}
	// Module A locked at 80, module B can still land anywhere.
	if !almostEqual(stats.BestCaseGrade, 90) {
		t.Errorf("BestCaseGrade = %v, want 90", stats.BestCaseGrade)
	}
	if !almostEqual(stats.WorstCaseGrade, 40) {
		t.Errorf("WorstCaseGrade = %v, want 40", stats.WorstCaseGrade)
	}
	if stats.OnTrack {
		t.Error("40 average against a 70 target should not be on track")
	}
}

func TestTargetGrade(t *testing.T) {
	svc, programID := statsFixture(t)

	calc, err := svc.TargetGrade(context.Background(), programID, 70)
	if err != nil {
		t.Fatalf("TargetGrade: %v", err)
	}

	// 40 points locked in, 50% of the degree remaining: need (70-40)/50*100 = 60%.
	if !almostEqual(calc.CurrentAverage, 40) {
		t.Errorf("CurrentAverage = %v, want 40", calc.CurrentAverage)
	}
	if !almostEqual(calc.RequiredAverageOnRemaining, 60) {
		t.Errorf("RequiredAverageOnRemaining = %v, want 60", calc.RequiredAverageOnRemaining)
	}
	if !calc.Achievable {
		t.Error("target should be achievable")
	}
	if !almostEqual(calc.Margin, 40) {
		t.Errorf("Margin = %v, want 40", calc.Margin)
	}

	// A target beyond what the remaining weight can deliver.
	calc, err = svc.TargetGrade(context.Background(), programID, 95)
	if err != nil {
		t.Fatalf("TargetGrade: %v", err)
	}
	if calc.Achievable {
		t.Error("95 target should be unachievable with 40 locked in and 50 remaining")
	}

	if _, err := svc.TargetGrade(context.Background(), programID, 140); err == nil {
		t.Error("out-of-range target accepted")
	}
}
