package degrees

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// ModuleStatistics summarises grading progress for one module. Averages are
// percentages; weightings are the share of the module's total assessment.
type ModuleStatistics struct {
	ModuleID   uuid.UUID
	ModuleName string

	// CurrentAverage is the weighted average over graded coursework, nil
	// until anything is graded.
	CurrentAverage *float64

	CompletedWeighting float64
	RemainingWeighting float64

	TotalCoursework  int
	GradedCoursework int

	// BestCaseGrade assumes full marks on everything ungraded,
	// WorstCaseGrade assumes zero.
	BestCaseGrade  float64
	WorstCaseGrade float64
}

// DegreeStatistics aggregates module statistics weighted by each module's
// share of the degree.
type DegreeStatistics struct {
	ProgramID   uuid.UUID
	ProgramName string

	OverallAverage *float64

	CompletedCredits int
	RemainingCredits int

	TotalModules     int
	CompletedModules int

	TargetGrade *float64
	OnTrack     bool

	BestCaseGrade  float64
	WorstCaseGrade float64

	Modules []ModuleStatistics
}

// TargetGradeCalculation reports what the remaining assessment must average
// for the degree to reach a target grade.
type TargetGradeCalculation struct {
	TargetGrade    float64
	CurrentAverage float64

	RequiredAverageOnRemaining float64
	Achievable                 bool
	// Margin is the slack between full marks and the required average when
	// the target is still achievable.
	Margin float64
}

// ModuleStatistics computes grading statistics for one module.
func (s *Service) ModuleStatistics(ctx context.Context, moduleID uuid.UUID) (ModuleStatistics, error) {
	module, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return ModuleStatistics{}, err
	}
	coursework, err := s.store.ListCoursework(ctx, moduleID)
	if err != nil {
		return ModuleStatistics{}, fmt.Errorf("list coursework: %w", err)
	}
	return computeModuleStatistics(module, coursework), nil
}

func computeModuleStatistics(module domain.Module, coursework []domain.Coursework) ModuleStatistics {
	stats := ModuleStatistics{
		ModuleID:        module.ID,
		ModuleName:      module.Name,
		TotalCoursework: len(coursework),
	}

	var totalWeighting, contribution float64
	for _, cw := range coursework {
		totalWeighting += cw.Weighting
		if cw.IsGraded() {
			stats.GradedCoursework++
			stats.CompletedWeighting += cw.Weighting
			contribution += cw.Percentage() * cw.Weighting / 100
		}
	}
	stats.RemainingWeighting = totalWeighting - stats.CompletedWeighting

	if stats.GradedCoursework > 0 && stats.CompletedWeighting > 0 {
		avg := contribution / stats.CompletedWeighting * 100
		stats.CurrentAverage = &avg
	}

	stats.BestCaseGrade = contribution + stats.RemainingWeighting
	stats.WorstCaseGrade = contribution
	if totalWeighting > 0 {
		stats.BestCaseGrade = stats.BestCaseGrade / totalWeighting * 100
		stats.WorstCaseGrade = stats.WorstCaseGrade / totalWeighting * 100
	}
	return stats
}

// DegreeStatistics computes the aggregate picture for a whole program.
func (s *Service) DegreeStatistics(ctx context.Context, programID uuid.UUID) (DegreeStatistics, error) {
	program, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return DegreeStatistics{}, err
	}
	modules, err := s.store.ListModules(ctx, programID)
	if err != nil {
		return DegreeStatistics{}, fmt.Errorf("list modules: %w", err)
	}

	stats := DegreeStatistics{
		ProgramID:    program.ID,
		ProgramName:  program.Name,
		TotalModules: len(modules),
		TargetGrade:  program.TargetGrade,
		OnTrack:      true,
	}

	var gradedWeighting, weightedGrade float64
	var bestCaseTotal, worstCaseTotal, totalWeighting float64

	for _, module := range modules {
		coursework, err := s.store.ListCoursework(ctx, module.ID)
		if err != nil {
			return DegreeStatistics{}, fmt.Errorf("list coursework for module %s: %w", module.ID, err)
		}
		moduleStats := computeModuleStatistics(module, coursework)
		stats.Modules = append(stats.Modules, moduleStats)

		if module.Status == domain.ModuleStatusCompleted {
			stats.CompletedModules++
			stats.CompletedCredits += module.Credits
		}

		if module.Weighting > 0 {
			totalWeighting += module.Weighting
			bestCaseTotal += moduleStats.BestCaseGrade * module.Weighting / 100
			worstCaseTotal += moduleStats.WorstCaseGrade * module.Weighting / 100
			if moduleStats.CurrentAverage != nil {
				weightedGrade += *moduleStats.CurrentAverage * module.Weighting / 100
				gradedWeighting += module.Weighting
			}
		}
	}

	stats.RemainingCredits = program.TotalCreditsRequired - stats.CompletedCredits

	if gradedWeighting > 0 {
		stats.OverallAverage = &weightedGrade
	}

	// Modules not yet on the books count as full marks for best case and
	// zero for worst case.
	stats.BestCaseGrade = bestCaseTotal + (100 - totalWeighting)
	stats.WorstCaseGrade = worstCaseTotal

	if program.TargetGrade != nil && stats.OverallAverage != nil {
		stats.OnTrack = *stats.OverallAverage >= *program.TargetGrade
	}
	return stats, nil
}

// TargetGrade computes the average required across remaining assessment to
// finish at the given degree grade.
func (s *Service) TargetGrade(ctx context.Context, programID uuid.UUID, target float64) (TargetGradeCalculation, error) {
	if target < 0 || target > 100 {
		return TargetGradeCalculation{}, fmt.Errorf("%w: target_grade must be within [0,100]", ErrValidation)
	}

	if _, err := s.store.GetProgram(ctx, programID); err != nil {
		return TargetGradeCalculation{}, err
	}
	modules, err := s.store.ListModules(ctx, programID)
	if err != nil {
		return TargetGradeCalculation{}, fmt.Errorf("list modules: %w", err)
	}

	calc := TargetGradeCalculation{TargetGrade: target}

	// Locked-in contribution in degree percentage points: graded module
	// averages weighted by each module's share of the degree.
	var contribution, gradedWeighting float64
	for _, module := range modules {
		if module.Weighting <= 0 {
			continue
		}
		coursework, err := s.store.ListCoursework(ctx, module.ID)
		if err != nil {
			return TargetGradeCalculation{}, fmt.Errorf("list coursework for module %s: %w", module.ID, err)
		}
		moduleStats := computeModuleStatistics(module, coursework)
		if moduleStats.CurrentAverage == nil {
			continue
		}
		contribution += *moduleStats.CurrentAverage * module.Weighting / 100
		gradedWeighting += module.Weighting
	}
	if gradedWeighting > 0 {
		calc.CurrentAverage = contribution
	}
	remaining := 100 - gradedWeighting

	switch {
	case remaining > 0:
		calc.RequiredAverageOnRemaining = (target - contribution) / remaining * 100
		if calc.RequiredAverageOnRemaining < 0 {
			calc.RequiredAverageOnRemaining = 0
		}
		calc.Achievable = calc.RequiredAverageOnRemaining <= 100
	default:
		calc.Achievable = calc.CurrentAverage >= target
	}

	if calc.Achievable {
		calc.Margin = 100 - calc.RequiredAverageOnRemaining
	}
	return calc, nil
}
