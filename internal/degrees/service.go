// Package degrees tracks degree programs, their modules, and assessed
// coursework, including grade statistics and the coursework-to-task link:
// coursework with a deadline gets an auto-created calendar task, and
// submitting or grading the coursework completes that task.
package degrees

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// ErrValidation wraps all creation/update-time rejections.
var ErrValidation = errors.New("validation failed")

type Store interface {
	CreateProgram(ctx context.Context, program domain.DegreeProgram) error
	GetProgram(ctx context.Context, id uuid.UUID) (domain.DegreeProgram, error)
	ListPrograms(ctx context.Context, userID uuid.UUID) ([]domain.DegreeProgram, error)
	UpdateProgram(ctx context.Context, program domain.DegreeProgram) error
	// DeleteProgram cascades modules and their coursework.
	DeleteProgram(ctx context.Context, id uuid.UUID) error

	CreateModule(ctx context.Context, module domain.Module) error
	GetModule(ctx context.Context, id uuid.UUID) (domain.Module, error)
	ListModules(ctx context.Context, programID uuid.UUID) ([]domain.Module, error)
	UpdateModule(ctx context.Context, module domain.Module) error
	DeleteModule(ctx context.Context, id uuid.UUID) error

	CreateCoursework(ctx context.Context, coursework domain.Coursework) error
	GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error)
	ListCoursework(ctx context.Context, moduleID uuid.UUID) ([]domain.Coursework, error)
	UpdateCoursework(ctx context.Context, coursework domain.Coursework) error
	DeleteCoursework(ctx context.Context, id uuid.UUID) error
}

// Planner is the calendar surface used for linked tasks.
type Planner interface {
	CreateItem(ctx context.Context, item domain.CalendarItem) (domain.CalendarItem, error)
	CompleteItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)
}

type Service struct {
	store   Store
	planner Planner // optional

	clock func() time.Time
}

func New(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// WithPlanner enables linked-task creation and completion. Without it the
// degree tracker still works, just without the calendar side.
func (s *Service) WithPlanner(planner Planner) *Service {
	s.planner = planner
	return s
}

func (s *Service) CreateProgram(ctx context.Context, program domain.DegreeProgram) (domain.DegreeProgram, error) {
	if err := validateProgram(program); err != nil {
		return domain.DegreeProgram{}, err
	}
	program.ID = uuid.New()
	if program.Status == "" {
		program.Status = domain.DegreeStatusInProgress
	}
	program.CreatedAt = s.clock().UTC()
	if err := s.store.CreateProgram(ctx, program); err != nil {
		return domain.DegreeProgram{}, fmt.Errorf("create program: %w", err)
	}
	return program, nil
}

func (s *Service) GetProgram(ctx context.Context, id uuid.UUID) (domain.DegreeProgram, error) {
	return s.store.GetProgram(ctx, id)
}

func (s *Service) ListPrograms(ctx context.Context, userID uuid.UUID) ([]domain.DegreeProgram, error) {
	return s.store.ListPrograms(ctx, userID)
}

func (s *Service) UpdateProgram(ctx context.Context, program domain.DegreeProgram) (domain.DegreeProgram, error) {
	if err := validateProgram(program); err != nil {
		return domain.DegreeProgram{}, err
	}
	current, err := s.store.GetProgram(ctx, program.ID)
	if err != nil {
		return domain.DegreeProgram{}, err
	}
	program.CreatedAt = current.CreatedAt
	if err := s.store.UpdateProgram(ctx, program); err != nil {
		return domain.DegreeProgram{}, fmt.Errorf("update program: %w", err)
	}
	return program, nil
}

func (s *Service) DeleteProgram(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetProgram(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteProgram(ctx, id)
}

func (s *Service) CreateModule(ctx context.Context, module domain.Module) (domain.Module, error) {
	if err := validateModule(module); err != nil {
		return domain.Module{}, err
	}
	if _, err := s.store.GetProgram(ctx, module.ProgramID); err != nil {
		return domain.Module{}, err
	}
	module.ID = uuid.New()
	if module.Status == "" {
		module.Status = domain.ModuleStatusUpcoming
	}
	module.CreatedAt = s.clock().UTC()
	if err := s.store.CreateModule(ctx, module); err != nil {
		return domain.Module{}, fmt.Errorf("create module: %w", err)
	}
	return module, nil
}

func (s *Service) GetModule(ctx context.Context, id uuid.UUID) (domain.Module, error) {
	return s.store.GetModule(ctx, id)
}

func (s *Service) ListModules(ctx context.Context, programID uuid.UUID) ([]domain.Module, error) {
	return s.store.ListModules(ctx, programID)
}

func (s *Service) UpdateModule(ctx context.Context, module domain.Module) (domain.Module, error) {
	if err := validateModule(module); err != nil {
		return domain.Module{}, err
	}
	current, err := s.store.GetModule(ctx, module.ID)
	if err != nil {
		return domain.Module{}, err
	}
	module.ProgramID = current.ProgramID
	module.CreatedAt = current.CreatedAt
	if err := s.store.UpdateModule(ctx, module); err != nil {
		return domain.Module{}, fmt.Errorf("update module: %w", err)
	}
	return module, nil
}

func (s *Service) DeleteModule(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetModule(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteModule(ctx, id)
}

// CreateCoursework persists a new coursework record. Marks supplied up front
// grade it immediately. A deadline gets a linked calendar task whose
// completion later syncs back through the coordinator.
func (s *Service) CreateCoursework(ctx context.Context, moduleID uuid.UUID, coursework domain.Coursework) (domain.Coursework, error) {
	if err := validateCoursework(coursework); err != nil {
		return domain.Coursework{}, err
	}
	module, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return domain.Coursework{}, err
	}

	now := s.clock().UTC()
	coursework.ID = uuid.New()
	coursework.ModuleID = moduleID
	if coursework.Status == "" {
		coursework.Status = domain.CourseworkStatusNotStarted
	}
	if coursework.AchievedMarks != nil {
		coursework.Status = domain.CourseworkStatusGraded
		coursework.GradedAt = &now
	}
	coursework.LinkedTaskID = nil
	coursework.CreatedAt = now

	if err := s.store.CreateCoursework(ctx, coursework); err != nil {
		return domain.Coursework{}, fmt.Errorf("create coursework: %w", err)
	}

	if coursework.Deadline != nil && s.planner != nil {
		coursework = s.createLinkedTask(ctx, module, coursework)
	}
	return coursework, nil
}

// createLinkedTask creates the deadline task for a coursework and records the
// link. The coursework row is already committed; a failure here only costs
// the calendar side, so it logs and returns the unlinked record.
func (s *Service) createLinkedTask(ctx context.Context, module domain.Module, coursework domain.Coursework) domain.Coursework {
	program, err := s.store.GetProgram(ctx, module.ProgramID)
	if err != nil {
		log.Printf("degrees: linked task for coursework %s: resolve program: %v", coursework.ID, err)
		return coursework
	}

	task, err := s.planner.CreateItem(ctx, domain.CalendarItem{
		UserID:      program.UserID,
		Type:        domain.ItemTypeTask,
		Title:       coursework.Name,
		Description: fmt.Sprintf("Coursework for %s %s", module.Code, module.Name),
		EndTime:     coursework.Deadline,
		SourceType:  domain.SourceCoursework,
		SourceID:    coursework.ID.String(),
	})
	if err != nil {
		log.Printf("degrees: create linked task for coursework %s: %v", coursework.ID, err)
		return coursework
	}

	coursework.LinkedTaskID = &task.ID
	if err := s.store.UpdateCoursework(ctx, coursework); err != nil {
		log.Printf("degrees: record linked task %s on coursework %s: %v", task.ID, coursework.ID, err)
		coursework.LinkedTaskID = nil
	}
	return coursework
}

func (s *Service) GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error) {
	return s.store.GetCoursework(ctx, id)
}

func (s *Service) ListCoursework(ctx context.Context, moduleID uuid.UUID) ([]domain.Coursework, error) {
	return s.store.ListCoursework(ctx, moduleID)
}

// UpdateCoursework applies field changes with the grading and submission
// side effects: first marks set graded_at and status, a move into submitted
// sets submitted_at, and either transition completes the linked task.
func (s *Service) UpdateCoursework(ctx context.Context, coursework domain.Coursework) (domain.Coursework, error) {
	if err := validateCoursework(coursework); err != nil {
		return domain.Coursework{}, err
	}
	current, err := s.store.GetCoursework(ctx, coursework.ID)
	if err != nil {
		return domain.Coursework{}, err
	}

	now := s.clock().UTC()
	coursework.ModuleID = current.ModuleID
	coursework.LinkedTaskID = current.LinkedTaskID
	coursework.SubmittedAt = current.SubmittedAt
	coursework.GradedAt = current.GradedAt
	coursework.CreatedAt = current.CreatedAt

	firstGrading := coursework.AchievedMarks != nil && current.AchievedMarks == nil
	if firstGrading {
		coursework.Status = domain.CourseworkStatusGraded
		coursework.GradedAt = &now
	}

	newlySubmitted := coursework.Status == domain.CourseworkStatusSubmitted && !current.Status.IsFinal()
	if newlySubmitted {
		coursework.SubmittedAt = &now
	}

	if err := s.store.UpdateCoursework(ctx, coursework); err != nil {
		return domain.Coursework{}, fmt.Errorf("update coursework: %w", err)
	}

	if (newlySubmitted || firstGrading) && coursework.LinkedTaskID != nil && s.planner != nil {
		if _, err := s.planner.CompleteItem(ctx, *coursework.LinkedTaskID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Printf("degrees: linked task %s for coursework %s no longer exists", *coursework.LinkedTaskID, coursework.ID)
			} else {
				log.Printf("degrees: complete linked task %s for coursework %s: %v", *coursework.LinkedTaskID, coursework.ID, err)
			}
		}
	}
	return coursework, nil
}

// DeleteCoursework removes the record. The linked task is a weak reference
// and is left in place; the sync coordinator tolerates the dangling link.
func (s *Service) DeleteCoursework(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetCoursework(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteCoursework(ctx, id)
}

func validateProgram(program domain.DegreeProgram) error {
	if program.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if program.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if program.TargetGrade != nil && (*program.TargetGrade < 0 || *program.TargetGrade > 100) {
		return fmt.Errorf("%w: target_grade must be within [0,100]", ErrValidation)
	}
	if program.TotalCreditsRequired < 0 {
		return fmt.Errorf("%w: total_credits_required must not be negative", ErrValidation)
	}
	switch program.Status {
	case "", domain.DegreeStatusInProgress, domain.DegreeStatusCompleted, domain.DegreeStatusDeferred:
	default:
		return fmt.Errorf("%w: unknown degree status %q", ErrValidation, program.Status)
	}
	return nil
}

func validateModule(module domain.Module) error {
	if module.Code == "" || module.Name == "" {
		return fmt.Errorf("%w: code and name are required", ErrValidation)
	}
	if module.Credits < 0 {
		return fmt.Errorf("%w: credits must not be negative", ErrValidation)
	}
	if module.Weighting < 0 || module.Weighting > 100 {
		return fmt.Errorf("%w: weighting must be within [0,100]", ErrValidation)
	}
	switch module.Status {
	case "", domain.ModuleStatusUpcoming, domain.ModuleStatusInProgress, domain.ModuleStatusCompleted:
	default:
		return fmt.Errorf("%w: unknown module status %q", ErrValidation, module.Status)
	}
	return nil
}

func validateCoursework(coursework domain.Coursework) error {
	if coursework.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if coursework.Weighting < 0 || coursework.Weighting > 100 {
		return fmt.Errorf("%w: weighting must be within [0,100]", ErrValidation)
	}
	if coursework.MaxMarks <= 0 {
		return fmt.Errorf("%w: max_marks must be positive", ErrValidation)
	}
	if coursework.AchievedMarks != nil && (*coursework.AchievedMarks < 0 || *coursework.AchievedMarks > coursework.MaxMarks) {
		return fmt.Errorf("%w: achieved_marks must be within [0,max_marks]", ErrValidation)
	}
	switch coursework.Status {
	case "", domain.CourseworkStatusNotStarted, domain.CourseworkStatusInProgress,
		domain.CourseworkStatusSubmitted, domain.CourseworkStatusGraded:
	default:
		return fmt.Errorf("%w: unknown coursework status %q", ErrValidation, coursework.Status)
	}
	return nil
}
