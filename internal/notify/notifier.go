// Package notify fans trigger firings out to a webhook endpoint so external
// surfaces (phones, displays, home automation) can show reminders. Delivery
// is best-effort with bounded retries and a per-URL circuit breaker; a dead
// endpoint never backs up the scheduler.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cgarryZA/garryOS/internal/circuitbreaker"
	"github.com/cgarryZA/garryOS/internal/domain"
	"github.com/cgarryZA/garryOS/internal/eventbus"
	"github.com/cgarryZA/garryOS/internal/metrics"
)

var defaultBackoff = []time.Duration{
	0,
	5 * time.Second,
	30 * time.Second,
}

const maxAttempts = 3

// Bus is the subscription surface the notifier needs.
type Bus interface {
	Subscribe(eventType string, handler eventbus.Handler) *eventbus.Subscription
	Unsubscribe(sub *eventbus.Subscription)
}

type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) WebhookResult
}

// Breaker gates deliveries per URL.
type Breaker interface {
	Allow(url string) error
	RecordSuccess(url string)
	RecordFailure(url string)
}

// MetricsSink defines the interface for recording notifier metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	NotifyAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	NotifyOutcome(outcome string)
}

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

type Notifier struct {
	config  Config
	bus     Bus
	sender  WebhookSender
	breaker Breaker     // optional, nil = always allow
	metrics MetricsSink // optional, nil = disabled
	backoff []time.Duration

	sub *eventbus.Subscription
}

func New(config Config, bus Bus, sender WebhookSender) *Notifier {
	return &Notifier{
		config:  config,
		bus:     bus,
		sender:  sender,
		backoff: defaultBackoff,
	}
}

// WithBreaker attaches a circuit breaker for the webhook URL.
func (n *Notifier) WithBreaker(breaker Breaker) *Notifier {
	n.breaker = breaker
	return n
}

// WithMetrics attaches a metrics sink to the notifier.
func (n *Notifier) WithMetrics(sink MetricsSink) *Notifier {
	n.metrics = sink
	return n
}

// Start subscribes to trigger.fired events. Idempotent.
func (n *Notifier) Start() {
	if n.sub != nil {
		return
	}
	n.sub = n.bus.Subscribe(domain.EventTriggerFired, n.handleTriggerFired)
	log.Printf("notify: started, delivering to %s", n.config.URL)
}

// Stop unsubscribes. Idempotent.
func (n *Notifier) Stop() {
	if n.sub == nil {
		return
	}
	n.bus.Unsubscribe(n.sub)
	n.sub = nil
	log.Println("notify: stopped")
}

func (n *Notifier) handleTriggerFired(ctx context.Context, event domain.Event) error {
	payload := WebhookPayload{
		FiredAt: event.Timestamp.UTC().Format(time.RFC3339),
	}
	payload.TriggerID, _ = event.Payload["trigger_id"].(string)
	payload.CalendarItemID, _ = event.Payload["calendar_item_id"].(string)
	payload.Title, _ = event.Payload["title"].(string)
	payload.Description, _ = event.Payload["description"].(string)
	payload.UserID, _ = event.Payload["user_id"].(string)

	return n.deliver(ctx, payload)
}

func (n *Notifier) deliver(ctx context.Context, payload WebhookPayload) error {
	req := WebhookRequest{
		URL:     n.config.URL,
		Secret:  n.config.Secret,
		Timeout: n.config.Timeout,
		Payload: payload,
	}

	var lastResult WebhookResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if n.breaker != nil {
			if err := n.breaker.Allow(req.URL); err != nil {
				if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
					log.Printf("notify: trigger=%s suppressed, circuit open for %s", payload.TriggerID, req.URL)
					n.recordOutcome(metrics.OutcomeSuppressed)
					return nil
				}
				return err
			}
		}

		if attempt > 1 {
			idx := attempt - 1
			if idx >= len(n.backoff) {
				idx = len(n.backoff) - 1
			}
			backoff := n.backoff[idx]

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return ctx.Err()
			case <-timer.C:
			}
		}

		req.AttemptID = uuid.New().String()
		result := n.sender.Send(ctx, req)
		lastResult = result

		if n.metrics != nil {
			n.metrics.NotifyAttemptCompleted(attempt, result.StatusClass(), result.Duration)
		}

		if result.IsSuccess() {
			if n.breaker != nil {
				n.breaker.RecordSuccess(req.URL)
			}
			n.recordOutcome(metrics.OutcomeSuccess)
			return nil
		}

		if n.breaker != nil {
			n.breaker.RecordFailure(req.URL)
		}

		if !result.IsRetryable() {
			log.Printf("notify: trigger=%s non-retryable status=%d", payload.TriggerID, result.StatusCode)
			break
		}
		log.Printf("notify: trigger=%s attempt=%d failed status=%d err=%v", payload.TriggerID, attempt, result.StatusCode, result.Error)
	}

	n.recordOutcome(metrics.OutcomeFailed)
	return fmt.Errorf("deliver trigger %s: status=%d err=%v", payload.TriggerID, lastResult.StatusCode, lastResult.Error)
}

func (n *Notifier) recordOutcome(outcome string) {
	if n.metrics != nil {
		n.metrics.NotifyOutcome(outcome)
	}
}
