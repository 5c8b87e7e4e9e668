package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

func (s *Store) CreateItem(ctx context.Context, item domain.CalendarItem) error {
	_, err := s.db.ExecContext(ctx, queryInsertItem,
		item.ID, item.UserID, string(item.Type), item.Title, item.Description,
		nullTime(item.StartTime), nullTime(item.EndTime), item.EstimatedDuration, item.ProgressPercent,
		item.RecurrenceRule, item.Location, string(item.Status), nullTime(item.CompletedAt),
		item.SourceType, item.SourceID, item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error) {
	row := s.db.QueryRowContext(ctx, queryGetItem, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CalendarItem{}, domain.ErrNotFound
		}
		return domain.CalendarItem{}, err
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CalendarItem, error) {
	rows, err := s.db.QueryContext(ctx, queryListItems, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CalendarItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) UpdateItem(ctx context.Context, item domain.CalendarItem) error {
	result, err := s.db.ExecContext(ctx, queryUpdateItem,
		item.ID, string(item.Type), item.Title, item.Description,
		nullTime(item.StartTime), nullTime(item.EndTime), item.EstimatedDuration,
		item.ProgressPercent, item.RecurrenceRule, item.Location,
		string(item.Status), item.SourceType, item.SourceID, item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	if err := s.db.QueryRowContext(ctx, queryDeleteItem, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// CompleteItem runs the completion transition and the trigger deactivation
// in one transaction. An already-completed item comes back unchanged with no
// deactivations.
func (s *Store) CompleteItem(ctx context.Context, id uuid.UUID, completedAt time.Time) (domain.CalendarItem, []uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CalendarItem{}, nil, err
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx, queryCompleteItem, id, completedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Not found, or already completed. Either way nothing changed.
			current, getErr := s.GetItem(ctx, id)
			if getErr != nil {
				return domain.CalendarItem{}, nil, getErr
			}
			return current, nil, nil
		}
		return domain.CalendarItem{}, nil, err
	}

	rows, err := tx.QueryContext(ctx, queryDeactivateItemTriggers, id)
	if err != nil {
		return domain.CalendarItem{}, nil, err
	}
	var deactivated []uuid.UUID
	for rows.Next() {
		var triggerID uuid.UUID
		if err := rows.Scan(&triggerID); err != nil {
			rows.Close()
			return domain.CalendarItem{}, nil, err
		}
		deactivated = append(deactivated, triggerID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.CalendarItem{}, nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return domain.CalendarItem{}, nil, err
	}
	return item, deactivated, nil
}

func (s *Store) CreateTrigger(ctx context.Context, trigger domain.Trigger) error {
	config, err := marshalJSON(trigger.TriggerConfig)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertTrigger,
		trigger.ID, trigger.CalendarItemID, string(trigger.TriggerType), config,
		nullTime(trigger.LastFiredAt), trigger.IsActive, trigger.CreatedAt,
	)
	return err
}

func (s *Store) ListTriggers(ctx context.Context, itemID uuid.UUID) ([]domain.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, queryListItemTriggers, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTriggers(rows)
}

func (s *Store) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	if err := s.db.QueryRowContext(ctx, queryDeleteTrigger, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.CalendarItem, error) {
	var item domain.CalendarItem
	var itemType, status string
	var startTime, endTime, completedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserID, &itemType, &item.Title, &item.Description,
		&startTime, &endTime, &item.EstimatedDuration, &item.ProgressPercent,
		&item.RecurrenceRule, &item.Location, &status, &completedAt,
		&item.SourceType, &item.SourceID, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.CalendarItem{}, err
	}
	item.Type = domain.CalendarItemType(itemType)
	item.Status = domain.CalendarItemStatus(status)
	item.StartTime = timePtr(startTime)
	item.EndTime = timePtr(endTime)
	item.CompletedAt = timePtr(completedAt)
	return item, nil
}

func scanTrigger(row rowScanner) (domain.Trigger, error) {
	var trigger domain.Trigger
	var triggerType string
	var config []byte
	var lastFiredAt sql.NullTime

	err := row.Scan(
		&trigger.ID, &trigger.CalendarItemID, &triggerType, &config,
		&lastFiredAt, &trigger.IsActive, &trigger.CreatedAt,
	)
	if err != nil {
		return domain.Trigger{}, err
	}
	trigger.TriggerType = domain.TriggerType(triggerType)
	trigger.LastFiredAt = timePtr(lastFiredAt)
	if trigger.TriggerConfig, err = unmarshalJSON(config); err != nil {
		return domain.Trigger{}, fmt.Errorf("trigger %s config: %w", trigger.ID, err)
	}
	return trigger, nil
}

func scanTriggers(rows *sql.Rows) ([]domain.Trigger, error) {
	var out []domain.Trigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trigger)
	}
	return out, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
