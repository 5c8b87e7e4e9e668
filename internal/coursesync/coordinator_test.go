package coursesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
	"github.com/cgarryZA/garryOS/internal/eventbus"
)

type fakeStores struct {
	mu         sync.Mutex
	items      map[uuid.UUID]domain.CalendarItem
	coursework map[uuid.UUID]domain.Coursework
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		items:      make(map[uuid.UUID]domain.CalendarItem),
		coursework: make(map[uuid.UUID]domain.Coursework),
	}
}

func (f *fakeStores) GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.CalendarItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (f *fakeStores) GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cw, ok := f.coursework[id]
	if !ok {
		return domain.Coursework{}, domain.ErrNotFound
	}
	return cw, nil
}

func (f *fakeStores) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cw, ok := f.coursework[id]
	if !ok {
		return domain.ErrNotFound
	}
	if cw.Status.IsFinal() {
		return ErrAlreadyFinal
	}
	cw.Status = domain.CourseworkStatusSubmitted
	cw.SubmittedAt = &submittedAt
	f.coursework[id] = cw
	return nil
}

func (f *fakeStores) courseworkByID(id uuid.UUID) domain.Coursework {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coursework[id]
}

func setup(t *testing.T) (*eventbus.Bus, *fakeStores, *Coordinator) {
	t.Helper()
	bus := eventbus.New()
	stores := newFakeStores()
	coord := New(bus, stores, stores)
	coord.Start()
	t.Cleanup(coord.Stop)
	return bus, stores, coord
}

func linkedItem(courseworkID uuid.UUID) domain.CalendarItem {
	return domain.CalendarItem{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Type:       domain.ItemTypeTask,
		Title:      "Finish report",
		Status:     domain.ItemStatusCompleted,
		SourceType: domain.SourceCoursework,
		SourceID:   courseworkID.String(),
	}
}

func publishCompleted(bus *eventbus.Bus, item domain.CalendarItem) {
	bus.Publish(context.Background(), domain.EventItemCompleted, map[string]any{
		"item_id": item.ID.String(),
		"title":   item.Title,
		"user_id": item.UserID.String(),
	})
}

func TestDirectionA_MarksCourseworkSubmitted(t *testing.T) {
	bus, stores, _ := setup(t)

	cwID := uuid.New()
	stores.coursework[cwID] = domain.Coursework{ID: cwID, Status: domain.CourseworkStatusInProgress}
	item := linkedItem(cwID)
	stores.items[item.ID] = item

	publishCompleted(bus, item)

	cw := stores.courseworkByID(cwID)
	if cw.Status != domain.CourseworkStatusSubmitted {
		t.Errorf("coursework status = %s, want submitted", cw.Status)
	}
	if cw.SubmittedAt == nil {
		t.Error("SubmittedAt not set")
	}

	updates := bus.History(domain.EventItemUpdated, 0)
	if len(updates) != 1 {
		t.Fatalf("item.updated events = %d, want 1", len(updates))
	}
	if updates[0].Payload["sync_action"] != SyncActionSubmitted {
		t.Errorf("sync_action = %v, want %s", updates[0].Payload["sync_action"], SyncActionSubmitted)
	}
	if updates[0].Payload["coursework_id"] != cwID.String() {
		t.Errorf("coursework_id = %v, want %s", updates[0].Payload["coursework_id"], cwID)
	}
}

func TestDirectionA_Idempotent(t *testing.T) {
	bus, stores, _ := setup(t)

	cwID := uuid.New()
	stores.coursework[cwID] = domain.Coursework{ID: cwID, Status: domain.CourseworkStatusNotStarted}
	item := linkedItem(cwID)
	stores.items[item.ID] = item

	publishCompleted(bus, item)
	first := stores.courseworkByID(cwID)

	publishCompleted(bus, item)
	second := stores.courseworkByID(cwID)

	if second.Status != domain.CourseworkStatusSubmitted {
		t.Errorf("status after second completion = %s, want submitted", second.Status)
	}
	if !second.SubmittedAt.Equal(*first.SubmittedAt) {
		t.Error("SubmittedAt changed on repeated completion")
	}
	if got := len(bus.History(domain.EventItemUpdated, 0)); got != 1 {
		t.Errorf("item.updated events = %d, want 1 (second completion is a no-op)", got)
	}
}

func TestDirectionA_DoesNotRegressGraded(t *testing.T) {
	bus, stores, _ := setup(t)

	marks := 72.0
	cwID := uuid.New()
	stores.coursework[cwID] = domain.Coursework{
		ID:            cwID,
		Status:        domain.CourseworkStatusGraded,
		AchievedMarks: &marks,
	}
	item := linkedItem(cwID)
	stores.items[item.ID] = item

	publishCompleted(bus, item)

	cw := stores.courseworkByID(cwID)
	if cw.Status != domain.CourseworkStatusGraded {
		t.Errorf("coursework status = %s, graded record must not regress", cw.Status)
	}
	if got := len(bus.History(domain.EventItemUpdated, 0)); got != 0 {
		t.Errorf("item.updated events = %d, want 0", got)
	}
}

func TestDirectionA_IgnoresUnlinkedItems(t *testing.T) {
	bus, stores, _ := setup(t)

	item := domain.CalendarItem{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Type:   domain.ItemTypeTask,
		Title:  "Plain task",
		Status: domain.ItemStatusCompleted,
	}
	stores.items[item.ID] = item

	publishCompleted(bus, item)

	if got := len(bus.History(domain.EventItemUpdated, 0)); got != 0 {
		t.Errorf("item.updated events = %d, want 0 for unlinked item", got)
	}
}

func TestDirectionA_MissingRecordsAreSkipped(t *testing.T) {
	bus, stores, _ := setup(t)

	// Item missing entirely.
	bus.Publish(context.Background(), domain.EventItemCompleted, map[string]any{
		"item_id": uuid.New().String(),
	})

	// Item present but coursework deleted out from under it.
	item := linkedItem(uuid.New())
	stores.items[item.ID] = item
	publishCompleted(bus, item)

	if got := len(bus.History(domain.EventItemUpdated, 0)); got != 0 {
		t.Errorf("item.updated events = %d, want 0", got)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	bus := eventbus.New()
	stores := newFakeStores()
	coord := New(bus, stores, stores)

	coord.Start()
	coord.Start()
	coord.Stop()
	coord.Stop()

	// After Stop the coordinator no longer reacts.
	cwID := uuid.New()
	stores.coursework[cwID] = domain.Coursework{ID: cwID, Status: domain.CourseworkStatusNotStarted}
	item := linkedItem(cwID)
	stores.items[item.ID] = item
	publishCompleted(bus, item)

	if stores.courseworkByID(cwID).Status != domain.CourseworkStatusNotStarted {
		t.Error("stopped coordinator still syncing")
	}
}
