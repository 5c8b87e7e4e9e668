// Package calendar implements the planner's item and trigger operations:
// CRUD, completion side effects, and the wiring between persisted triggers
// and the scheduler's one-shot timers. Every committed mutation is announced
// on the event bus.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
)

// ErrValidation wraps all creation/update-time rejections so callers can
// map them to a client error without persisting anything.
var ErrValidation = errors.New("validation failed")

type Store interface {
	CreateItem(ctx context.Context, item domain.CalendarItem) error
	GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)
	ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CalendarItem, error)
	UpdateItem(ctx context.Context, item domain.CalendarItem) error
	// DeleteItem removes the item and cascades its triggers and their
	// executions in one transaction.
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// CompleteItem transitions the item to completed, sets completed_at and
	// progress, and deactivates its triggers in one transaction. It returns
	// the updated item plus the IDs of the triggers it deactivated.
	CompleteItem(ctx context.Context, id uuid.UUID, completedAt time.Time) (domain.CalendarItem, []uuid.UUID, error)

	CreateTrigger(ctx context.Context, trigger domain.Trigger) error
	GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error)
	ListTriggers(ctx context.Context, itemID uuid.UUID) ([]domain.Trigger, error)
	DeleteTrigger(ctx context.Context, id uuid.UUID) error

	ListExecutions(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerExecution, error)
}

// EventPublisher is the bus surface the service needs.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) domain.Event
}

// TimerScheduler manages one-shot timers for TIME triggers with a fixed
// fire_at. The sweep covers triggers either way; timers only tighten the
// firing latency below the sweep interval.
type TimerScheduler interface {
	ScheduleTrigger(triggerID uuid.UUID, fireAt time.Time)
	CancelTrigger(triggerID uuid.UUID)
}

type Service struct {
	store  Store
	bus    EventPublisher
	timers TimerScheduler // optional

	clock func() time.Time
}

func New(store Store, bus EventPublisher) *Service {
	return &Service{
		store: store,
		bus:   bus,
		clock: time.Now,
	}
}

// WithTimers wires the scheduler so create/complete/delete keep its one-shot
// timers in step with the stored triggers.
func (s *Service) WithTimers(timers TimerScheduler) *Service {
	s.timers = timers
	return s
}

// CreateItem validates and persists a new item, then publishes item.created.
// Status defaults to pending and progress to zero.
func (s *Service) CreateItem(ctx context.Context, item domain.CalendarItem) (domain.CalendarItem, error) {
	if err := validateItem(item); err != nil {
		return domain.CalendarItem{}, err
	}

	now := s.clock().UTC()
	item.ID = uuid.New()
	if item.Status == "" {
		item.Status = domain.ItemStatusPending
	}
	item.CompletedAt = nil
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.store.CreateItem(ctx, item); err != nil {
		return domain.CalendarItem{}, fmt.Errorf("create item: %w", err)
	}

	s.bus.Publish(ctx, domain.EventItemCreated, map[string]any{
		"item_id": item.ID.String(),
		"title":   item.Title,
		"user_id": item.UserID.String(),
		"type":    string(item.Type),
	})
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CalendarItem, error) {
	return s.store.ListItems(ctx, userID, limit, offset)
}

// UpdateItem validates and persists field changes, then publishes
// item.updated. Completion goes through CompleteItem, not here: an update
// that sets status to completed is rejected so the completion side effects
// cannot be bypassed.
func (s *Service) UpdateItem(ctx context.Context, item domain.CalendarItem) (domain.CalendarItem, error) {
	if err := validateItem(item); err != nil {
		return domain.CalendarItem{}, err
	}

	current, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return domain.CalendarItem{}, err
	}
	if item.Status == domain.ItemStatusCompleted && current.Status != domain.ItemStatusCompleted {
		return domain.CalendarItem{}, fmt.Errorf("%w: use the completion operation to complete an item", ErrValidation)
	}

	item.CreatedAt = current.CreatedAt
	item.CompletedAt = current.CompletedAt
	item.UpdatedAt = s.clock().UTC()

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return domain.CalendarItem{}, fmt.Errorf("update item: %w", err)
	}

	s.bus.Publish(ctx, domain.EventItemUpdated, map[string]any{
		"item_id": item.ID.String(),
		"title":   item.Title,
		"user_id": item.UserID.String(),
	})
	return item, nil
}

// CompleteItem marks the item completed: status, completed_at, and full
// progress move together, and every trigger the item owns is deactivated
// and its timer cancelled. Completing an already-completed item is a no-op.
// The item.completed event fires once, after commit.
func (s *Service) CompleteItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error) {
	current, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.CalendarItem{}, err
	}
	if current.Status == domain.ItemStatusCompleted {
		return current, nil
	}

	completedAt := s.clock().UTC()
	item, deactivated, err := s.store.CompleteItem(ctx, id, completedAt)
	if err != nil {
		return domain.CalendarItem{}, fmt.Errorf("complete item: %w", err)
	}

	if s.timers != nil {
		for _, triggerID := range deactivated {
			s.timers.CancelTrigger(triggerID)
		}
	}

	s.bus.Publish(ctx, domain.EventItemCompleted, map[string]any{
		"item_id": item.ID.String(),
		"title":   item.Title,
		"user_id": item.UserID.String(),
	})
	return item, nil
}

// DeleteItem cancels the timers of every owned trigger, then deletes the
// item with its triggers and executions, then publishes item.deleted.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return err
	}

	triggers, err := s.store.ListTriggers(ctx, id)
	if err != nil {
		return fmt.Errorf("list triggers for delete: %w", err)
	}
	if s.timers != nil {
		for _, trigger := range triggers {
			s.timers.CancelTrigger(trigger.ID)
		}
	}

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.bus.Publish(ctx, domain.EventItemDeleted, map[string]any{
		"item_id": item.ID.String(),
		"title":   item.Title,
		"user_id": item.UserID.String(),
	})
	return nil
}

// CreateTrigger validates the config against the declared type, persists the
// trigger active, and publishes trigger.created. A TIME trigger with a
// future fire_at also gets a one-shot timer.
func (s *Service) CreateTrigger(ctx context.Context, itemID uuid.UUID, triggerType domain.TriggerType, config map[string]any) (domain.Trigger, error) {
	if err := ValidateTriggerConfig(triggerType, config); err != nil {
		return domain.Trigger{}, err
	}

	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return domain.Trigger{}, err
	}

	trigger := domain.Trigger{
		ID:             uuid.New(),
		CalendarItemID: itemID,
		TriggerType:    triggerType,
		TriggerConfig:  config,
		IsActive:       true,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.store.CreateTrigger(ctx, trigger); err != nil {
		return domain.Trigger{}, fmt.Errorf("create trigger: %w", err)
	}

	if s.timers != nil && trigger.TriggerType == domain.TriggerTypeTime {
		if fireAt, ok := trigger.FireAt(); ok && fireAt.After(s.clock().UTC()) {
			s.timers.ScheduleTrigger(trigger.ID, fireAt)
		}
	}

	s.bus.Publish(ctx, domain.EventTriggerCreated, map[string]any{
		"trigger_id":       trigger.ID.String(),
		"calendar_item_id": itemID.String(),
		"trigger_type":     string(triggerType),
	})
	return trigger, nil
}

func (s *Service) GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error) {
	return s.store.GetTrigger(ctx, id)
}

func (s *Service) ListTriggers(ctx context.Context, itemID uuid.UUID) ([]domain.Trigger, error) {
	return s.store.ListTriggers(ctx, itemID)
}

// DeleteTrigger cancels the trigger's timer, deletes it with its executions,
// and publishes trigger.deleted.
func (s *Service) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	trigger, err := s.store.GetTrigger(ctx, id)
	if err != nil {
		return err
	}

	if s.timers != nil {
		s.timers.CancelTrigger(id)
	}
	if err := s.store.DeleteTrigger(ctx, id); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}

	s.bus.Publish(ctx, domain.EventTriggerDeleted, map[string]any{
		"trigger_id":       trigger.ID.String(),
		"calendar_item_id": trigger.CalendarItemID.String(),
	})
	return nil
}

func (s *Service) ListExecutions(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerExecution, error) {
	return s.store.ListExecutions(ctx, triggerID, limit, offset)
}

// RestoreTimers re-arms one-shot timers for pending fire_at triggers after a
// restart. Sweep coverage makes this best-effort: a failure here only costs
// firing latency, so it logs and moves on.
func (s *Service) RestoreTimers(ctx context.Context, triggers []domain.Trigger) {
	if s.timers == nil {
		return
	}
	now := s.clock().UTC()
	for _, trigger := range triggers {
		if !trigger.IsActive || trigger.TriggerType != domain.TriggerTypeTime {
			continue
		}
		fireAt, ok := trigger.FireAt()
		if !ok || !fireAt.After(now) {
			continue
		}
		if trigger.LastFiredAt != nil && !trigger.Repeats() {
			continue
		}
		s.timers.ScheduleTrigger(trigger.ID, fireAt)
		log.Printf("calendar: restored timer for trigger %s at %s", trigger.ID, fireAt.Format(time.RFC3339))
	}
}
