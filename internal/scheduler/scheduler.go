// Package scheduler fires time triggers.
//
// Two paths lead to a firing: the periodic sweep over all active time
// triggers, and one-shot timers registered at trigger creation for precise
// delivery. Both paths can race on the same trigger; the store's guarded
// update is the single source of truth for whether a firing proceeds, so a
// lost race is a silent skip rather than a duplicate.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/cron"
	"github.com/cgarryZA/garryOS/internal/domain"
)

// ErrAlreadyFired is returned by Store.MarkFired when the firing guard
// (is_active, last_fired_at) no longer holds at write time.
var ErrAlreadyFired = errors.New("trigger already fired")

// Store is the persistence surface the scheduler needs.
type Store interface {
	ListActiveTimeTriggers(ctx context.Context) ([]domain.Trigger, error)
	GetTrigger(ctx context.Context, id uuid.UUID) (domain.Trigger, error)
	GetItem(ctx context.Context, id uuid.UUID) (domain.CalendarItem, error)

	// MarkFired records a successful firing in one transaction: it re-checks
	// the firing guard, sets last_fired_at, deactivates the trigger when
	// deactivate is set, and inserts exec. Returns ErrAlreadyFired when the
	// guard fails, leaving the trigger untouched.
	MarkFired(ctx context.Context, trigger domain.Trigger, exec domain.TriggerExecution, deactivate bool) error

	// InsertExecution records a firing attempt outside the MarkFired
	// transaction. Used for best-effort FAILURE records.
	InsertExecution(ctx context.Context, exec domain.TriggerExecution) error
}

// EventPublisher publishes domain events after a firing commits.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) domain.Event
}

// AnalyticsSink records firing counts as a best-effort side effect.
type AnalyticsSink interface {
	Record(ctx context.Context, itemID, triggerID uuid.UUID, firedAt time.Time)
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	SweepStarted()
	SweepCompleted(duration time.Duration, triggersFired int, err error)
	OneShotScheduled()
	OneShotCancelled()
	TriggerFired(status string)
}

type Config struct {
	SweepInterval time.Duration
}

// Scheduler owns the sweep clock and the one-shot timer table.
type Scheduler struct {
	config    Config
	store     Store
	bus       EventPublisher
	parser    *cron.Parser
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	clock     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	timers  map[uuid.UUID]*time.Timer
	wg      sync.WaitGroup
}

func New(config Config, store Store, bus EventPublisher) *Scheduler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	return &Scheduler{
		config: config,
		store:  store,
		bus:    bus,
		parser: cron.NewParser(),
		clock:  time.Now,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// WithAnalytics attaches an analytics sink.
func (s *Scheduler) WithAnalytics(sink AnalyticsSink) *Scheduler {
	s.analytics = sink
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Start installs the periodic sweep. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Println("scheduler: already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	log.Printf("scheduler: started, sweep=%s", s.config.SweepInterval)
}

// Shutdown stops the sweep clock and cancels all pending one-shot timers.
// A firing already in progress completes normally. Idempotent.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("scheduler: stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := s.clock()
			if s.metrics != nil {
				s.metrics.SweepStarted()
			}
			fired, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("scheduler: sweep error: %v", err)
			}
			if s.metrics != nil {
				s.metrics.SweepCompleted(s.clock().Sub(start), fired, err)
			}
		}
	}
}

// Sweep evaluates every active time trigger against the current time and
// fires those that are due. Per-trigger errors are logged and do not abort
// the sweep. Returns the number of successful firings.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.clock().UTC()

	triggers, err := s.store.ListActiveTimeTriggers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active time triggers: %w", err)
	}

	fired := 0
	for _, trigger := range triggers {
		due, err := s.due(trigger, now)
		if err != nil {
			log.Printf("scheduler: trigger %s config error: %v", trigger.ID, err)
			continue
		}
		if !due {
			continue
		}
		if err := s.fire(ctx, trigger.ID); err != nil {
			log.Printf("scheduler: trigger %s error: %v", trigger.ID, err)
			continue
		}
		fired++
	}

	return fired, nil
}

// due decides whether a trigger should fire at now.
//
// fire_at triggers: due once fire_at <= now and either never fired or marked
// repeat. A repeating fire_at trigger therefore re-fires on every sweep tick;
// the config carries no recurrence rule to advance fire_at by, so the
// behavior is kept as-is rather than inventing one.
//
// cron triggers: due when the next occurrence after the last firing (or
// after creation, for a first firing) has passed.
func (s *Scheduler) due(trigger domain.Trigger, now time.Time) (bool, error) {
	if fireAt, ok := trigger.FireAt(); ok {
		if fireAt.After(now) {
			return false, nil
		}
		return trigger.LastFiredAt == nil || trigger.Repeats(), nil
	}

	if expr, ok := trigger.CronExpression(); ok {
		sched, err := s.parser.Parse(expr)
		if err != nil {
			return false, err
		}
		after := trigger.CreatedAt
		if trigger.LastFiredAt != nil {
			after = *trigger.LastFiredAt
		}
		next := sched.Next(after.UTC())
		return !next.IsZero() && !next.After(now), nil
	}

	return false, fmt.Errorf("time trigger has neither fire_at nor cron")
}

// ScheduleTrigger registers a one-shot timer that fires the trigger at
// fireAt, replacing any existing timer for the same trigger. Times in the
// past fire immediately.
func (s *Scheduler) ScheduleTrigger(triggerID uuid.UUID, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[triggerID]; ok {
		timer.Stop()
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.timers[triggerID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, triggerID)
		s.mu.Unlock()

		if err := s.fire(context.Background(), triggerID); err != nil {
			log.Printf("scheduler: one-shot trigger %s error: %v", triggerID, err)
		}
	})

	if s.metrics != nil {
		s.metrics.OneShotScheduled()
	}
	log.Printf("scheduler: scheduled trigger %s for %s", triggerID, fireAt.UTC().Format(time.RFC3339))
}

// CancelTrigger removes a pending one-shot timer. No-op when none exists.
// A firing already in flight is not aborted.
func (s *Scheduler) CancelTrigger(triggerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[triggerID]
	if !ok {
		return
	}
	timer.Stop()
	delete(s.timers, triggerID)

	if s.metrics != nil {
		s.metrics.OneShotCancelled()
	}
	log.Printf("scheduler: cancelled trigger %s", triggerID)
}

// fire executes one firing attempt. The trigger and its item are re-loaded
// so the guard reflects current state, and MarkFired re-checks it again
// atomically at the write: the sweep and a stale one-shot timer racing on
// the same trigger produce exactly one execution for a non-repeating
// trigger.
func (s *Scheduler) fire(ctx context.Context, triggerID uuid.UUID) error {
	trigger, err := s.store.GetTrigger(ctx, triggerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("scheduler: trigger %s not found, skipping", triggerID)
			return nil
		}
		return fmt.Errorf("get trigger: %w", err)
	}

	if !trigger.IsActive || (trigger.LastFiredAt != nil && !trigger.Repeats()) {
		s.recordFired(metricsFireSkipped)
		return nil
	}

	item, err := s.store.GetItem(ctx, trigger.CalendarItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("scheduler: item %s for trigger %s not found, skipping", trigger.CalendarItemID, triggerID)
			return nil
		}
		return fmt.Errorf("get item: %w", err)
	}

	now := s.clock().UTC()
	exec := domain.TriggerExecution{
		ID:        uuid.New(),
		TriggerID: trigger.ID,
		FiredAt:   now,
		Status:    domain.ExecutionStatusSuccess,
		Result: map[string]any{
			"message":          "Reminder for: " + item.Title,
			"calendar_item_id": item.ID.String(),
			"title":            item.Title,
			"description":      item.Description,
		},
		CreatedAt: now,
	}

	deactivate := !trigger.Repeats()
	if err := s.store.MarkFired(ctx, trigger, exec, deactivate); err != nil {
		if errors.Is(err, ErrAlreadyFired) {
			// Lost the race against the other firing path.
			s.recordFired(metricsFireSkipped)
			return nil
		}
		s.recordFailure(ctx, trigger.ID, now, err)
		return fmt.Errorf("mark fired: %w", err)
	}

	s.bus.Publish(ctx, domain.EventTriggerFired, map[string]any{
		"trigger_id":       trigger.ID.String(),
		"calendar_item_id": item.ID.String(),
		"title":            item.Title,
		"description":      item.Description,
		"user_id":          item.UserID.String(),
	})

	if s.analytics != nil {
		s.analytics.Record(ctx, item.ID, trigger.ID, now)
	}

	s.recordFired(metricsFireSuccess)
	log.Printf("scheduler: fired trigger %s for item %q", trigger.ID, item.Title)
	return nil
}

// recordFailure inserts a FAILURE execution as a secondary, best-effort
// write. If even that insert fails, the error is only logged.
func (s *Scheduler) recordFailure(ctx context.Context, triggerID uuid.UUID, firedAt time.Time, cause error) {
	s.recordFired(metricsFireFailure)

	exec := domain.TriggerExecution{
		ID:        uuid.New(),
		TriggerID: triggerID,
		FiredAt:   firedAt,
		Status:    domain.ExecutionStatusFailure,
		Result:    map[string]any{"error": cause.Error()},
		CreatedAt: firedAt,
	}
	if err := s.store.InsertExecution(ctx, exec); err != nil {
		log.Printf("scheduler: failed to record failure for trigger %s: %v", triggerID, err)
	}
}

const (
	metricsFireSuccess = "success"
	metricsFireFailure = "failure"
	metricsFireSkipped = "skipped"
)

func (s *Scheduler) recordFired(status string) {
	if s.metrics != nil {
		s.metrics.TriggerFired(status)
	}
}
