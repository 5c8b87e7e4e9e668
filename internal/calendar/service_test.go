package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
	"github.com/cgarryZA/garryOS/internal/eventbus"
)

type mockStore struct {
	mu       sync.Mutex
	items    map[uuid.UUID]domain.CalendarItem
	triggers map[uuid.UUID]domain.Trigger
	execs    map[uuid.UUID][]domain.TriggerExecution
}

func newMockStore() *mockStore {
	return &mockStore{
		items:    make(map[uuid.UUID]domain.CalendarItem),
		triggers: make(map[uuid.UUID]domain.Trigger),
		execs:    make(map[uuid.UUID][]domain.TriggerExecution),
	}
}

func (m *mockStore) CreateItem(ctx context.Context, item domain.CalendarItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *mockStore) GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.CalendarItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (m *mockStore) ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CalendarItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CalendarItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateItem(ctx context.Context, item domain.CalendarItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	for triggerID, trigger := range m.triggers {
		if trigger.CalendarItemID == id {
			delete(m.triggers, triggerID)
			delete(m.execs, triggerID)
		}
	}
	return nil
}

func (m *mockStore) CompleteItem(ctx context.Context, id uuid.UUID, completedAt time.Time) (domain.CalendarItem, []uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.CalendarItem{}, nil, domain.ErrNotFound
	}
	item.Status = domain.ItemStatusCompleted
	item.CompletedAt = &completedAt
	item.ProgressPercent = 100
	item.UpdatedAt = completedAt
	m.items[id] = item

	var deactivated []uuid.UUID
	for triggerID, trigger := range m.triggers {
		if trigger.CalendarItemID == id && trigger.IsActive {
			trigger.IsActive = false
			m.triggers[triggerID] = trigger
			deactivated = append(deactivated, triggerID)
		}
	}
	return item, deactivated, nil
}

func (m *mockStore) CreateTrigger(ctx context.Context, trigger domain.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[trigger.ID] = trigger
	return nil
}

func (m *mockStore) GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trigger, ok := m.triggers[id]
	if !ok {
		return domain.Trigger{}, domain.ErrNotFound
	}
	return trigger, nil
}

func (m *mockStore) ListTriggers(ctx context.Context, itemID uuid.UUID) ([]domain.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trigger
	for _, trigger := range m.triggers {
		if trigger.CalendarItemID == itemID {
			out = append(out, trigger)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.triggers, id)
	delete(m.execs, id)
	return nil
}

func (m *mockStore) ListExecutions(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execs[triggerID], nil
}

type mockTimers struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	cancelled []uuid.UUID
}

func newMockTimers() *mockTimers {
	return &mockTimers{scheduled: make(map[uuid.UUID]time.Time)}
}

func (m *mockTimers) ScheduleTrigger(triggerID uuid.UUID, fireAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled[triggerID] = fireAt
}

func (m *mockTimers) CancelTrigger(triggerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, triggerID)
}

func newService(t *testing.T) (*Service, *mockStore, *mockTimers, *eventbus.Bus) {
	t.Helper()
	store := newMockStore()
	bus := eventbus.New()
	timers := newMockTimers()
	svc := New(store, bus).WithTimers(timers)
	return svc, store, timers, bus
}

func validItem() domain.CalendarItem {
	return domain.CalendarItem{
		UserID: uuid.New(),
		Type:   domain.ItemTypeTask,
		Title:  "Write lab report",
	}
}

func TestCreateItem(t *testing.T) {
	svc, store, _, bus := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID == uuid.Nil {
		t.Error("item ID not assigned")
	}
	if item.Status != domain.ItemStatusPending {
		t.Errorf("status = %s, want pending", item.Status)
	}
	if _, ok := store.items[item.ID]; !ok {
		t.Error("item not persisted")
	}

	events := bus.History(domain.EventItemCreated, 0)
	if len(events) != 1 {
		t.Fatalf("item.created events = %d, want 1", len(events))
	}
	if events[0].Payload["item_id"] != item.ID.String() {
		t.Errorf("event item_id = %v, want %s", events[0].Payload["item_id"], item.ID)
	}
}

func TestCreateItem_Validation(t *testing.T) {
	past := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := past.Add(-time.Hour)

	cases := []struct {
		name   string
		mutate func(*domain.CalendarItem)
	}{
		{"missing user", func(i *domain.CalendarItem) { i.UserID = uuid.Nil }},
		{"empty title", func(i *domain.CalendarItem) { i.Title = "" }},
		{"unknown type", func(i *domain.CalendarItem) { i.Type = "appointment" }},
		{"unknown status", func(i *domain.CalendarItem) { i.Status = "done" }},
		{"progress above range", func(i *domain.CalendarItem) { i.ProgressPercent = 101 }},
		{"progress below range", func(i *domain.CalendarItem) { i.ProgressPercent = -1 }},
		{"negative duration", func(i *domain.CalendarItem) { i.EstimatedDuration = -5 }},
		{"end before start", func(i *domain.CalendarItem) { i.StartTime = &past; i.EndTime = &earlier }},
		{"rrule without start", func(i *domain.CalendarItem) { i.RecurrenceRule = "FREQ=DAILY" }},
		{"malformed rrule", func(i *domain.CalendarItem) { i.StartTime = &past; i.RecurrenceRule = "FREQ=SOMETIMES" }},
		{"source id without type", func(i *domain.CalendarItem) { i.SourceID = uuid.New().String() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := newService(t)
			item := validItem()
			tc.mutate(&item)

			_, err := svc.CreateItem(context.Background(), item)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if len(store.items) != 0 {
				t.Error("invalid item was persisted")
			}
		})
	}
}

func TestUpdateItem_RejectsDirectCompletion(t *testing.T) {
	svc, _, _, _ := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	item.Status = domain.ItemStatusCompleted
	if _, err := svc.UpdateItem(context.Background(), item); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCompleteItem(t *testing.T) {
	svc, store, timers, bus := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	trigger, err := svc.CreateTrigger(context.Background(), item.ID, domain.TriggerTypeTime, map[string]any{
		"fire_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}

	completed, err := svc.CompleteItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("CompleteItem: %v", err)
	}
	if completed.Status != domain.ItemStatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if completed.ProgressPercent != 100 {
		t.Errorf("progress = %d, want 100", completed.ProgressPercent)
	}
	if store.triggers[trigger.ID].IsActive {
		t.Error("owned trigger still active after completion")
	}

	timers.mu.Lock()
	cancelled := len(timers.cancelled)
	timers.mu.Unlock()
	if cancelled != 1 {
		t.Errorf("cancelled timers = %d, want 1", cancelled)
	}

	if got := len(bus.History(domain.EventItemCompleted, 0)); got != 1 {
		t.Fatalf("item.completed events = %d, want 1", got)
	}

	// Completing again is a no-op: no second event.
	if _, err := svc.CompleteItem(context.Background(), item.ID); err != nil {
		t.Fatalf("repeat CompleteItem: %v", err)
	}
	if got := len(bus.History(domain.EventItemCompleted, 0)); got != 1 {
		t.Errorf("item.completed events after repeat = %d, want 1", got)
	}
}

func TestDeleteItem_CascadesAndCancelsTimers(t *testing.T) {
	svc, store, timers, bus := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateTrigger(context.Background(), item.ID, domain.TriggerTypeNFC, map[string]any{
			"tag_id": "tag-1",
		}); err != nil {
			t.Fatalf("CreateTrigger: %v", err)
		}
	}

	if err := svc.DeleteItem(context.Background(), item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	if len(store.items) != 0 || len(store.triggers) != 0 {
		t.Error("delete did not cascade")
	}
	timers.mu.Lock()
	cancelled := len(timers.cancelled)
	timers.mu.Unlock()
	if cancelled != 2 {
		t.Errorf("cancelled timers = %d, want 2", cancelled)
	}
	if got := len(bus.History(domain.EventItemDeleted, 0)); got != 1 {
		t.Errorf("item.deleted events = %d, want 1", got)
	}
}

func TestCreateTrigger_ConfigValidation(t *testing.T) {
	cases := []struct {
		name        string
		triggerType domain.TriggerType
		config      map[string]any
		wantErr     bool
	}{
		{"time fire_at", domain.TriggerTypeTime, map[string]any{"fire_at": "2026-09-01T10:00:00Z"}, false},
		{"time fire_at with repeat", domain.TriggerTypeTime, map[string]any{"fire_at": "2026-09-01T10:00:00Z", "repeat": true}, false},
		{"time cron", domain.TriggerTypeTime, map[string]any{"cron": "0 9 * * 1"}, false},
		{"time empty config", domain.TriggerTypeTime, map[string]any{}, true},
		{"time both fire_at and cron", domain.TriggerTypeTime, map[string]any{"fire_at": "2026-09-01T10:00:00Z", "cron": "0 9 * * *"}, true},
		{"time malformed fire_at", domain.TriggerTypeTime, map[string]any{"fire_at": "tomorrow"}, true},
		{"time malformed cron", domain.TriggerTypeTime, map[string]any{"cron": "every monday"}, true},
		{"time non-bool repeat", domain.TriggerTypeTime, map[string]any{"fire_at": "2026-09-01T10:00:00Z", "repeat": "yes"}, true},
		{"location complete", domain.TriggerTypeLocation, map[string]any{"latitude": 51.5, "longitude": -0.12, "radius_meters": 200.0}, false},
		{"location missing radius", domain.TriggerTypeLocation, map[string]any{"latitude": 51.5, "longitude": -0.12}, true},
		{"location latitude out of range", domain.TriggerTypeLocation, map[string]any{"latitude": 91.0, "longitude": 0.0, "radius_meters": 200.0}, true},
		{"location zero radius", domain.TriggerTypeLocation, map[string]any{"latitude": 51.5, "longitude": -0.12, "radius_meters": 0.0}, true},
		{"progress threshold", domain.TriggerTypeProgress, map[string]any{"threshold_percent": 75}, false},
		{"progress missing threshold", domain.TriggerTypeProgress, map[string]any{}, true},
		{"progress threshold out of range", domain.TriggerTypeProgress, map[string]any{"threshold_percent": 150.0}, true},
		{"nfc tag", domain.TriggerTypeNFC, map[string]any{"tag_id": "abc123"}, false},
		{"nfc missing tag", domain.TriggerTypeNFC, map[string]any{}, true},
		{"unknown type", domain.TriggerType("weather"), map[string]any{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := newService(t)
			item, err := svc.CreateItem(context.Background(), validItem())
			if err != nil {
				t.Fatalf("CreateItem: %v", err)
			}

			_, err = svc.CreateTrigger(context.Background(), item.ID, tc.triggerType, tc.config)
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				if len(store.triggers) != 0 {
					t.Error("invalid trigger was persisted")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTrigger: %v", err)
			}
			if len(store.triggers) != 1 {
				t.Error("valid trigger not persisted")
			}
		})
	}
}

func TestCreateTrigger_SchedulesFutureFireAt(t *testing.T) {
	svc, _, timers, bus := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	future := time.Now().UTC().Add(2 * time.Hour)
	trigger, err := svc.CreateTrigger(context.Background(), item.ID, domain.TriggerTypeTime, map[string]any{
		"fire_at": future.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}

	timers.mu.Lock()
	_, scheduled := timers.scheduled[trigger.ID]
	timers.mu.Unlock()
	if !scheduled {
		t.Error("future fire_at trigger not scheduled")
	}
	if got := len(bus.History(domain.EventTriggerCreated, 0)); got != 1 {
		t.Errorf("trigger.created events = %d, want 1", got)
	}

	// Past fire_at is left to the sweep.
	past, err := svc.CreateTrigger(context.Background(), item.ID, domain.TriggerTypeTime, map[string]any{
		"fire_at": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}
	timers.mu.Lock()
	_, scheduled = timers.scheduled[past.ID]
	timers.mu.Unlock()
	if scheduled {
		t.Error("past fire_at trigger should not get a timer")
	}
}

func TestCreateTrigger_MissingItem(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.CreateTrigger(context.Background(), uuid.New(), domain.TriggerTypeNFC, map[string]any{
		"tag_id": "abc",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTrigger(t *testing.T) {
	svc, store, timers, bus := newService(t)

	item, err := svc.CreateItem(context.Background(), validItem())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	trigger, err := svc.CreateTrigger(context.Background(), item.ID, domain.TriggerTypeProgress, map[string]any{
		"threshold_percent": 50.0,
	})
	if err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}

	if err := svc.DeleteTrigger(context.Background(), trigger.ID); err != nil {
		t.Fatalf("DeleteTrigger: %v", err)
	}
	if len(store.triggers) != 0 {
		t.Error("trigger not deleted")
	}
	timers.mu.Lock()
	cancelled := len(timers.cancelled)
	timers.mu.Unlock()
	if cancelled != 1 {
		t.Errorf("cancelled timers = %d, want 1", cancelled)
	}
	if got := len(bus.History(domain.EventTriggerDeleted, 0)); got != 1 {
		t.Errorf("trigger.deleted events = %d, want 1", got)
	}
}

func TestRestoreTimers(t *testing.T) {
	svc, _, timers, _ := newService(t)

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	fired := time.Now().UTC().Add(-time.Minute)

	pending := domain.Trigger{ID: uuid.New(), TriggerType: domain.TriggerTypeTime, IsActive: true,
		TriggerConfig: map[string]any{"fire_at": future}}
	overdue := domain.Trigger{ID: uuid.New(), TriggerType: domain.TriggerTypeTime, IsActive: true,
		TriggerConfig: map[string]any{"fire_at": past}}
	inactive := domain.Trigger{ID: uuid.New(), TriggerType: domain.TriggerTypeTime, IsActive: false,
		TriggerConfig: map[string]any{"fire_at": future}}
	alreadyFired := domain.Trigger{ID: uuid.New(), TriggerType: domain.TriggerTypeTime, IsActive: true,
		TriggerConfig: map[string]any{"fire_at": future}, LastFiredAt: &fired}
	nfc := domain.Trigger{ID: uuid.New(), TriggerType: domain.TriggerTypeNFC, IsActive: true,
		TriggerConfig: map[string]any{"tag_id": "abc"}}

	svc.RestoreTimers(context.Background(), []domain.Trigger{pending, overdue, inactive, alreadyFired, nfc})

	timers.mu.Lock()
	defer timers.mu.Unlock()
	if len(timers.scheduled) != 1 {
		t.Fatalf("scheduled timers = %d, want 1", len(timers.scheduled))
	}
	if _, ok := timers.scheduled[pending.ID]; !ok {
		t.Error("pending future trigger not restored")
	}
}
