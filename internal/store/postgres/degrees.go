package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

func (s *Store) CreateProgram(ctx context.Context, program domain.DegreeProgram) error {
	_, err := s.db.ExecContext(ctx, queryInsertProgram,
		program.ID, program.UserID, program.Name, program.Institution,
		nullFloat(program.TargetGrade), program.TotalCreditsRequired, string(program.Status),
		nullTime(program.StartDate), nullTime(program.EndDate), program.CreatedAt,
	)
	return err
}

func (s *Store) GetProgram(ctx context.Context, id uuid.UUID) (domain.DegreeProgram, error) {
	program, err := scanProgram(s.db.QueryRowContext(ctx, queryGetProgram, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DegreeProgram{}, domain.ErrNotFound
		}
		return domain.DegreeProgram{}, err
	}
	return program, nil
}

func (s *Store) ListPrograms(ctx context.Context, userID uuid.UUID) ([]domain.DegreeProgram, error) {
	rows, err := s.db.QueryContext(ctx, queryListPrograms, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DegreeProgram
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, program)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProgram(ctx context.Context, program domain.DegreeProgram) error {
	result, err := s.db.ExecContext(ctx, queryUpdateProgram,
		program.ID, program.Name, program.Institution, nullFloat(program.TargetGrade),
		program.TotalCreditsRequired, string(program.Status),
		nullTime(program.StartDate), nullTime(program.EndDate),
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteProgram(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	if err := s.db.QueryRowContext(ctx, queryDeleteProgram, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) CreateModule(ctx context.Context, module domain.Module) error {
	_, err := s.db.ExecContext(ctx, queryInsertModule,
		module.ID, module.ProgramID, module.Code, module.Name, module.Credits,
		module.Weighting, module.Semester, module.AcademicYear, string(module.Status), module.CreatedAt,
	)
	return err
}

func (s *Store) GetModule(ctx context.Context, id uuid.UUID) (domain.Module, error) {
	module, err := scanModule(s.db.QueryRowContext(ctx, queryGetModule, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Module{}, domain.ErrNotFound
		}
		return domain.Module{}, err
	}
	return module, nil
}

func (s *Store) ListModules(ctx context.Context, programID uuid.UUID) ([]domain.Module, error) {
	rows, err := s.db.QueryContext(ctx, queryListModules, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, module)
	}
	return out, rows.Err()
}

func (s *Store) UpdateModule(ctx context.Context, module domain.Module) error {
	result, err := s.db.ExecContext(ctx, queryUpdateModule,
		module.ID, module.Code, module.Name, module.Credits, module.Weighting,
		module.Semester, module.AcademicYear, string(module.Status),
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteModule(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	if err := s.db.QueryRowContext(ctx, queryDeleteModule, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) CreateCoursework(ctx context.Context, coursework domain.Coursework) error {
	_, err := s.db.ExecContext(ctx, queryInsertCoursework,
		coursework.ID, coursework.ModuleID, coursework.Name, coursework.Weighting,
		coursework.MaxMarks, nullFloat(coursework.AchievedMarks), nullTime(coursework.Deadline),
		string(coursework.Status), coursework.Feedback,
		nullTime(coursework.SubmittedAt), nullTime(coursework.GradedAt),
		nullUUID(coursework.LinkedTaskID), coursework.CreatedAt,
	)
	return err
}

func (s *Store) GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error) {
	coursework, err := scanCoursework(s.db.QueryRowContext(ctx, queryGetCoursework, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Coursework{}, domain.ErrNotFound
		}
		return domain.Coursework{}, err
	}
	return coursework, nil
}

func (s *Store) ListCoursework(ctx context.Context, moduleID uuid.UUID) ([]domain.Coursework, error) {
	rows, err := s.db.QueryContext(ctx, queryListCoursework, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Coursework
	for rows.Next() {
		coursework, err := scanCoursework(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, coursework)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCoursework(ctx context.Context, coursework domain.Coursework) error {
	result, err := s.db.ExecContext(ctx, queryUpdateCoursework,
		coursework.ID, coursework.Name, coursework.Weighting, coursework.MaxMarks,
		nullFloat(coursework.AchievedMarks), nullTime(coursework.Deadline),
		string(coursework.Status), coursework.Feedback,
		nullTime(coursework.SubmittedAt), nullTime(coursework.GradedAt),
		nullUUID(coursework.LinkedTaskID),
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteCoursework(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	if err := s.db.QueryRowContext(ctx, queryDeleteCoursework, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func scanProgram(row rowScanner) (domain.DegreeProgram, error) {
	var program domain.DegreeProgram
	var status string
	var targetGrade sql.NullFloat64
	var startDate, endDate sql.NullTime

	err := row.Scan(
		&program.ID, &program.UserID, &program.Name, &program.Institution,
		&targetGrade, &program.TotalCreditsRequired, &status,
		&startDate, &endDate, &program.CreatedAt,
	)
	if err != nil {
		return domain.DegreeProgram{}, err
	}
	program.Status = domain.DegreeStatus(status)
	program.TargetGrade = floatPtr(targetGrade)
	program.StartDate = timePtr(startDate)
	program.EndDate = timePtr(endDate)
	return program, nil
}

func scanModule(row rowScanner) (domain.Module, error) {
	var module domain.Module
	var status string

	err := row.Scan(
		&module.ID, &module.ProgramID, &module.Code, &module.Name, &module.Credits,
		&module.Weighting, &module.Semester, &module.AcademicYear, &status, &module.CreatedAt,
	)
	if err != nil {
		return domain.Module{}, err
	}
	module.Status = domain.ModuleStatus(status)
	return module, nil
}

func scanCoursework(row rowScanner) (domain.Coursework, error) {
	var coursework domain.Coursework
	var status string
	var achievedMarks sql.NullFloat64
	var deadline, submittedAt, gradedAt sql.NullTime
	var linkedTaskID uuid.NullUUID

	err := row.Scan(
		&coursework.ID, &coursework.ModuleID, &coursework.Name, &coursework.Weighting,
		&coursework.MaxMarks, &achievedMarks, &deadline, &status, &coursework.Feedback,
		&submittedAt, &gradedAt, &linkedTaskID, &coursework.CreatedAt,
	)
	if err != nil {
		return domain.Coursework{}, err
	}
	coursework.Status = domain.CourseworkStatus(status)
	coursework.AchievedMarks = floatPtr(achievedMarks)
	coursework.Deadline = timePtr(deadline)
	coursework.SubmittedAt = timePtr(submittedAt)
	coursework.GradedAt = timePtr(gradedAt)
	if linkedTaskID.Valid {
		id := linkedTaskID.UUID
		coursework.LinkedTaskID = &id
	}
	return coursework, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
