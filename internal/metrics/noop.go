package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) SweepStarted()                                                           {}
func (n *NoopSink) SweepCompleted(duration time.Duration, triggersFired int, err error)     {}
func (n *NoopSink) OneShotScheduled()                                                       {}
func (n *NoopSink) OneShotCancelled()                                                       {}
func (n *NoopSink) TriggerFired(status string)                                              {}
func (n *NoopSink) EventPublished(eventType string)                                         {}
func (n *NoopSink) HandlerError(eventType string)                                           {}
func (n *NoopSink) HistorySizeUpdate(size int)                                              {}
func (n *NoopSink) DurableAppendError()                                                     {}
func (n *NoopSink) SyncOutcome(outcome string)                                              {}
func (n *NoopSink) NotifyAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) NotifyOutcome(outcome string)                                            {}
func (n *NoopSink) TriggersRepaired(count int)                                              {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                       {}
func (n *NoopSink) LeaderAcquired()                                                         {}
func (n *NoopSink) LeaderLost(reason string)                                                {}
