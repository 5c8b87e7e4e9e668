// Package reconciler repairs triggers left active on completed items.
//
// Completing a calendar item deactivates its triggers in the same
// transaction, but a crash between the item update and a concurrent
// trigger insert can leave an active trigger pointing at a completed
// item. The reconciler periodically deactivates such triggers so the
// scheduler never fires them. Deactivation is idempotent - repairing an
// already-inactive trigger is a no-op at the SQL level.
package reconciler

import (
	"context"
	"log"
	"time"
)

// Store defines the interface for repairing stale triggers.
type Store interface {
	// RepairStaleTriggers deactivates up to limit active triggers whose
	// calendar items are completed, returning the number repaired.
	RepairStaleTriggers(ctx context.Context, limit int) (int, error)
}

// MetricsSink receives repair counts.
type MetricsSink interface {
	TriggersRepaired(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// BatchSize is the maximum number of triggers to repair per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		BatchSize: 100,
	}
}

// Reconciler deactivates triggers orphaned by interrupted completions.
type Reconciler struct {
	config  Config
	store   Store
	metrics MetricsSink
}

// New creates a new Reconciler. Non-positive interval or batch size falls
// back to the default; a zero interval would panic the ticker in Run.
func New(config Config, store Store) *Reconciler {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &Reconciler{
		config: config,
		store:  store,
	}
}

// WithMetrics attaches a metrics sink. Returns the reconciler for chaining.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the repair loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, batch=%d)",
		r.config.Interval, r.config.BatchSize)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one repair cycle. A full batch means more stale
// triggers may remain, so the cycle loops until a short batch or error.
func (r *Reconciler) runCycle(ctx context.Context) {
	total := 0

	for {
		if ctx.Err() != nil {
			break
		}

		repaired, err := r.store.RepairStaleTriggers(ctx, r.config.BatchSize)
		if err != nil {
			// DB error: log and abort cycle. Will retry next interval.
			log.Printf("reconciler: failed to repair stale triggers: %v", err)
			break
		}

		total += repaired
		if repaired < r.config.BatchSize {
			break
		}
	}

	if total == 0 {
		// Nothing to do. Silent success.
		return
	}

	log.Printf("reconciler: deactivated %d stale triggers", total)
	if r.metrics != nil {
		r.metrics.TriggersRepaired(total)
	}
}
