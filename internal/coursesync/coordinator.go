// Package coursesync keeps a calendar task and its linked coursework record
// consistent.
//
// Direction A (task -> coursework) lives here: completing a
// coursework-linked task marks the coursework submitted. Direction B
// (coursework -> task) is owned by the degrees service, whose contract is to
// call the calendar item-completion operation rather than mutate item fields
// directly, so completion side effects run uniformly.
package coursesync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/domain"
	"github.com/cgarryZA/garryOS/internal/eventbus"
)

// ErrAlreadyFinal is returned by CourseworkStore.MarkSubmitted when the
// coursework is already submitted or graded. Re-completing a task must not
// regress a graded record.
var ErrAlreadyFinal = errors.New("coursework already submitted or graded")

// SyncAction tag carried on the item.updated event published after a
// successful submission sync.
const SyncActionSubmitted = "coursework_submitted"

// Bus is the event surface the coordinator needs.
type Bus interface {
	Subscribe(eventType string, handler eventbus.Handler) *eventbus.Subscription
	Unsubscribe(sub *eventbus.Subscription)
	Publish(ctx context.Context, eventType string, payload map[string]any) domain.Event
}

type ItemStore interface {
	GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)
}

type CourseworkStore interface {
	GetCoursework(ctx context.Context, id uuid.UUID) (domain.Coursework, error)

	// MarkSubmitted atomically transitions the coursework to SUBMITTED with
	// the given timestamp, guarded on the status not already being final.
	// Returns ErrAlreadyFinal when the guard fails.
	MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error
}

// MetricsSink defines the interface for recording sync metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	SyncOutcome(outcome string)
}

// Coordinator subscribes to item.completed and applies Direction A.
type Coordinator struct {
	bus        Bus
	items      ItemStore
	coursework CourseworkStore
	metrics    MetricsSink // optional, nil = disabled
	clock      func() time.Time

	sub *eventbus.Subscription
}

func New(bus Bus, items ItemStore, coursework CourseworkStore) *Coordinator {
	return &Coordinator{
		bus:        bus,
		items:      items,
		coursework: coursework,
		clock:      time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (c *Coordinator) WithMetrics(sink MetricsSink) *Coordinator {
	c.metrics = sink
	return c
}

// Start registers the coordinator on the bus. Idempotent.
func (c *Coordinator) Start() {
	if c.sub != nil {
		return
	}
	c.sub = c.bus.Subscribe(domain.EventItemCompleted, c.handleItemCompleted)
	log.Println("coursesync: started")
}

// Stop removes the bus registration. Idempotent.
func (c *Coordinator) Stop() {
	if c.sub == nil {
		return
	}
	c.bus.Unsubscribe(c.sub)
	c.sub = nil
	log.Println("coursesync: stopped")
}

// handleItemCompleted applies Direction A for one completion event.
// Applying it twice in succession produces the same end state as once: the
// store's guarded update refuses to touch submitted or graded coursework.
func (c *Coordinator) handleItemCompleted(ctx context.Context, event domain.Event) error {
	rawID, _ := event.Payload["item_id"].(string)
	itemID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("item.completed payload has no valid item_id: %w", err)
	}

	item, err := c.items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("coursesync: item %s not found, skipping", itemID)
			return nil
		}
		c.recordOutcome("error")
		return fmt.Errorf("get item: %w", err)
	}

	if !item.IsCourseworkLinked() {
		return nil
	}

	courseworkID, err := uuid.Parse(item.SourceID)
	if err != nil {
		log.Printf("coursesync: item %s has malformed coursework reference %q, skipping", itemID, item.SourceID)
		return nil
	}

	cw, err := c.coursework.GetCoursework(ctx, courseworkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("coursesync: coursework %s for item %s not found, skipping", courseworkID, itemID)
			return nil
		}
		c.recordOutcome("error")
		return fmt.Errorf("get coursework: %w", err)
	}

	if cw.Status.IsFinal() {
		c.recordOutcome("noop")
		return nil
	}

	if err := c.coursework.MarkSubmitted(ctx, courseworkID, c.clock().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyFinal) {
			// Lost a race against a concurrent submission; same end state.
			c.recordOutcome("noop")
			return nil
		}
		c.recordOutcome("error")
		return fmt.Errorf("mark submitted: %w", err)
	}

	c.bus.Publish(ctx, domain.EventItemUpdated, map[string]any{
		"item_id":       item.ID.String(),
		"title":         item.Title,
		"user_id":       item.UserID.String(),
		"sync_action":   SyncActionSubmitted,
		"coursework_id": courseworkID.String(),
	})

	c.recordOutcome("submitted")
	log.Printf("coursesync: marked coursework %s submitted for item %q", courseworkID, item.Title)
	return nil
}

func (c *Coordinator) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.SyncOutcome(outcome)
	}
}
