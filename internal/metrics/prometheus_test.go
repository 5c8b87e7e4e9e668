package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPrometheusSink_SchedulerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.SweepStarted()
	sink.SweepStarted()
	sink.SweepCompleted(50*time.Millisecond, 3, nil)
	sink.SweepCompleted(10*time.Millisecond, 0, errors.New("db down"))
	sink.TriggerFired(FireStatusSuccess)
	sink.TriggerFired(FireStatusFailure)
	sink.OneShotScheduled()
	sink.OneShotCancelled()

	if got := gatherValue(t, reg, "garryos_scheduler_sweeps_total"); got != 2 {
		t.Errorf("sweeps_total = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "garryos_scheduler_sweep_errors_total"); got != 1 {
		t.Errorf("sweep_errors_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "garryos_scheduler_triggers_fired_total"); got != 2 {
		t.Errorf("triggers_fired_total = %v, want 2", got)
	}
}

func TestPrometheusSink_BusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.EventPublished("item.completed")
	sink.EventPublished("trigger.fired")
	sink.HandlerError("trigger.fired")
	sink.HistorySizeUpdate(42)
	sink.DurableAppendError()

	if got := gatherValue(t, reg, "garryos_eventbus_events_published_total"); got != 2 {
		t.Errorf("events_published_total = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "garryos_eventbus_history_size"); got != 42 {
		t.Errorf("history_size = %v, want 42", got)
	}
	if got := gatherValue(t, reg, "garryos_eventbus_durable_append_errors_total"); got != 1 {
		t.Errorf("durable_append_errors_total = %v, want 1", got)
	}
}

func TestPrometheusSink_DoubleRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()

	// Second sink against the same registry hits AlreadyRegisteredError for
	// every collector; those are logged, never propagated.
	_ = NewPrometheusSink(reg)
	sink := NewPrometheusSink(reg)

	sink.SweepStarted()
	sink.SyncOutcome(SyncOutcomeSubmitted)
	sink.NotifyAttemptCompleted(1, StatusClass2xx, 100*time.Millisecond)
	sink.NotifyOutcome(OutcomeSuccess)
	sink.TriggersRepaired(3)
}
