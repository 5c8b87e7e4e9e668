package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	sweepsTotal        prometheus.Counter
	sweepErrorsTotal   prometheus.Counter
	sweepDuration      prometheus.Histogram
	triggersFiredTotal *prometheus.CounterVec
	oneShotsScheduled  prometheus.Counter
	oneShotsCancelled  prometheus.Counter

	// Event bus metrics
	eventsPublishedTotal *prometheus.CounterVec
	handlerErrorsTotal   *prometheus.CounterVec
	historySize          prometheus.Gauge
	durableAppendErrors  prometheus.Counter

	// Sync metrics
	syncOutcomesTotal *prometheus.CounterVec

	// Notifier metrics
	notifyAttemptsTotal *prometheus.CounterVec
	notifyOutcomesTotal *prometheus.CounterVec
	notifyDuration      prometheus.Histogram

	// Reconciler metrics
	triggersRepairedTotal prometheus.Counter

	// Leader election metrics
	leaderStatus       prometheus.Gauge
	leaderAcquisitions prometheus.Counter
	leaderLossesTotal  *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initBusMetrics(reg)
	s.initSyncMetrics(reg)
	s.initNotifierMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.sweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_scheduler_sweeps_total",
		Help: "Total number of trigger sweeps processed.",
	})
	s.sweepErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_scheduler_sweep_errors_total",
		Help: "Total number of sweep errors.",
	})
	s.sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "garryos_scheduler_sweep_duration_seconds",
		Help:    "Duration of each trigger sweep in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.triggersFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_scheduler_triggers_fired_total",
		Help: "Total number of trigger firing attempts by status.",
	}, []string{"status"})
	s.oneShotsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_scheduler_oneshots_scheduled_total",
		Help: "Total number of one-shot timers scheduled.",
	})
	s.oneShotsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_scheduler_oneshots_cancelled_total",
		Help: "Total number of one-shot timers cancelled.",
	})

	s.register(reg, s.sweepsTotal, "garryos_scheduler_sweeps_total")
	s.register(reg, s.sweepErrorsTotal, "garryos_scheduler_sweep_errors_total")
	s.register(reg, s.sweepDuration, "garryos_scheduler_sweep_duration_seconds")
	s.register(reg, s.triggersFiredTotal, "garryos_scheduler_triggers_fired_total")
	s.register(reg, s.oneShotsScheduled, "garryos_scheduler_oneshots_scheduled_total")
	s.register(reg, s.oneShotsCancelled, "garryos_scheduler_oneshots_cancelled_total")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_eventbus_events_published_total",
		Help: "Total number of events published by type.",
	}, []string{"type"})
	s.handlerErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_eventbus_handler_errors_total",
		Help: "Total number of subscriber handler errors by event type.",
	}, []string{"type"})
	s.historySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "garryos_eventbus_history_size",
		Help: "Current number of events retained in the in-memory history.",
	})
	s.durableAppendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_eventbus_durable_append_errors_total",
		Help: "Total number of failed durable event appends.",
	})

	s.register(reg, s.eventsPublishedTotal, "garryos_eventbus_events_published_total")
	s.register(reg, s.handlerErrorsTotal, "garryos_eventbus_handler_errors_total")
	s.register(reg, s.historySize, "garryos_eventbus_history_size")
	s.register(reg, s.durableAppendErrors, "garryos_eventbus_durable_append_errors_total")
}

func (s *PrometheusSink) initSyncMetrics(reg prometheus.Registerer) {
	s.syncOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_sync_outcomes_total",
		Help: "Total number of coursework sync outcomes.",
	}, []string{"outcome"})

	s.register(reg, s.syncOutcomesTotal, "garryos_sync_outcomes_total")
}

func (s *PrometheusSink) initNotifierMetrics(reg prometheus.Registerer) {
	s.notifyAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_notifier_attempts_total",
		Help: "Total number of webhook notification attempts.",
	}, []string{"attempt", "status_class"})
	s.notifyOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_notifier_outcomes_total",
		Help: "Total number of final notification outcomes.",
	}, []string{"outcome"})
	s.notifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "garryos_notifier_webhook_duration_seconds",
		Help:    "Webhook request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.triggersRepairedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_reconciler_triggers_repaired_total",
		Help: "Total number of stale active triggers deactivated by the reconciler.",
	})

	s.register(reg, s.notifyAttemptsTotal, "garryos_notifier_attempts_total")
	s.register(reg, s.notifyOutcomesTotal, "garryos_notifier_outcomes_total")
	s.register(reg, s.notifyDuration, "garryos_notifier_webhook_duration_seconds")
	s.register(reg, s.triggersRepairedTotal, "garryos_reconciler_triggers_repaired_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "garryos_leader_status",
		Help: "1 if this instance is the leader, 0 otherwise.",
	})
	s.leaderAcquisitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garryos_leader_acquisitions_total",
		Help: "Total number of times this instance acquired leadership.",
	})
	s.leaderLossesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garryos_leader_losses_total",
		Help: "Total number of times this instance lost leadership, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "garryos_leader_status")
	s.register(reg, s.leaderAcquisitions, "garryos_leader_acquisitions_total")
	s.register(reg, s.leaderLossesTotal, "garryos_leader_losses_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) SweepStarted() {
	s.sweepsTotal.Inc()
}

func (s *PrometheusSink) SweepCompleted(duration time.Duration, triggersFired int, err error) {
	s.sweepDuration.Observe(duration.Seconds())
	if err != nil {
		s.sweepErrorsTotal.Inc()
	}
	_ = triggersFired // per-firing counts come through TriggerFired
}

func (s *PrometheusSink) OneShotScheduled() {
	s.oneShotsScheduled.Inc()
}

func (s *PrometheusSink) OneShotCancelled() {
	s.oneShotsCancelled.Inc()
}

func (s *PrometheusSink) TriggerFired(status string) {
	s.triggersFiredTotal.WithLabelValues(status).Inc()
}

// Event bus metrics implementation

func (s *PrometheusSink) EventPublished(eventType string) {
	s.eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func (s *PrometheusSink) HandlerError(eventType string) {
	s.handlerErrorsTotal.WithLabelValues(eventType).Inc()
}

func (s *PrometheusSink) HistorySizeUpdate(size int) {
	s.historySize.Set(float64(size))
}

func (s *PrometheusSink) DurableAppendError() {
	s.durableAppendErrors.Inc()
}

// Sync metrics implementation

func (s *PrometheusSink) SyncOutcome(outcome string) {
	s.syncOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Notifier metrics implementation

func (s *PrometheusSink) NotifyAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.notifyAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.notifyDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) NotifyOutcome(outcome string) {
	s.notifyOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) TriggersRepaired(count int) {
	s.triggersRepairedTotal.Add(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(leading bool) {
	if leading {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquisitions.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLossesTotal.WithLabelValues(reason).Inc()
}
