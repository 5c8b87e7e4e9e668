// Package postgres persists the planner's state. One Store implements every
// per-package consumer interface; callers depend only on the slice they need.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/calendar"
	"github.com/cgarryZA/garryOS/internal/coursesync"
	"github.com/cgarryZA/garryOS/internal/degrees"
	"github.com/cgarryZA/garryOS/internal/domain"
	"github.com/cgarryZA/garryOS/internal/eventbus"
	"github.com/cgarryZA/garryOS/internal/scheduler"
)

type Store struct {
	db *sql.DB
}

// New creates a store over an open database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListActiveTimeTriggers returns every active TIME trigger for the sweep.
func (s *Store) ListActiveTimeTriggers(ctx context.Context) ([]domain.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, queryListActiveTimeTriggers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTriggers(rows)
}

func (s *Store) GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error) {
	row := s.db.QueryRowContext(ctx, queryGetTrigger, id)
	trigger, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Trigger{}, domain.ErrNotFound
		}
		return domain.Trigger{}, err
	}
	return trigger, nil
}

// MarkFired commits a successful firing: one transaction re-checks the
// guard, stamps last_fired_at, optionally deactivates the trigger, and
// inserts the execution record. A failed guard leaves everything untouched
// and returns scheduler.ErrAlreadyFired.
func (s *Store) MarkFired(ctx context.Context, trigger domain.Trigger, exec domain.TriggerExecution, deactivate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, queryMarkFired,
		trigger.ID,
		exec.FiredAt,
		!deactivate,
		trigger.LastFiredAt,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either gone or the guard failed. Distinguish so a deleted trigger
		// surfaces as not-found.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT true FROM triggers WHERE id = $1`, trigger.ID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		return scheduler.ErrAlreadyFired
	}

	if err := insertExecutionTx(ctx, tx, exec); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertExecution(ctx context.Context, exec domain.TriggerExecution) error {
	result, err := marshalJSON(exec.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertExecution,
		exec.ID, exec.TriggerID, exec.FiredAt, string(exec.Status), result, exec.CreatedAt,
	)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExecutionTx(ctx context.Context, tx execer, exec domain.TriggerExecution) error {
	result, err := marshalJSON(exec.Result)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, queryInsertExecution,
		exec.ID, exec.TriggerID, exec.FiredAt, string(exec.Status), result, exec.CreatedAt,
	)
	return err
}

func (s *Store) ListExecutions(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerExecution, error) {
	rows, err := s.db.QueryContext(ctx, queryListExecutions, triggerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TriggerExecution
	for rows.Next() {
		var exec domain.TriggerExecution
		var status string
		var result []byte
		if err := rows.Scan(&exec.ID, &exec.TriggerID, &exec.FiredAt, &status, &result, &exec.CreatedAt); err != nil {
			return nil, err
		}
		exec.Status = domain.TriggerExecutionStatus(status)
		if exec.Result, err = unmarshalJSON(result); err != nil {
			return nil, fmt.Errorf("execution %s result: %w", exec.ID, err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// AppendEvent persists a published event to the append-only log.
func (s *Store) AppendEvent(ctx context.Context, event domain.Event) error {
	payload, err := marshalJSON(event.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertEvent, event.ID, event.Type, payload, event.Timestamp)
	return err
}

// MarkSubmitted transitions a coursework to submitted unless it is already
// final. The guard lives in the WHERE clause so concurrent completions of
// the same item cannot double-submit.
func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, queryMarkSubmitted, id, submittedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		if err := s.db.QueryRowContext(ctx, queryGetCourseworkStatus, id).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		return coursesync.ErrAlreadyFinal
	}
	return nil
}

// RepairStaleTriggers deactivates up to limit active triggers whose items
// are already completed. Returns the number repaired.
func (s *Store) RepairStaleTriggers(ctx context.Context, limit int) (int, error) {
	result, err := s.db.ExecContext(ctx, queryRepairStaleTriggers, limit)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

func unmarshalJSON(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Compile-time interface assertions
var (
	_ scheduler.Store            = (*Store)(nil)
	_ eventbus.DurableStore      = (*Store)(nil)
	_ coursesync.ItemStore       = (*Store)(nil)
	_ coursesync.CourseworkStore = (*Store)(nil)
	_ calendar.Store             = (*Store)(nil)
	_ degrees.Store              = (*Store)(nil)
)
