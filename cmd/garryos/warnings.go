package main

import (
	"log"

	"github.com/cgarryZA/garryOS/internal/config"
)

// logConfigWarnings flags configurations that are valid but leave gaps a
// production deployment would care about.
func logConfigWarnings(cfg config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("garryos: WARNING [P0]: RECONCILE_ENABLED=false - triggers left active on completed items will not be repaired. " +
			"Set RECONCILE_ENABLED=true in production.")
	}

	if !cfg.MetricsEnabled {
		log.Println("garryos: WARNING [P1]: METRICS_ENABLED=false - sweep latency, handler errors and notifier outcomes will not be observable.")
	}

	if cfg.WebhookURL != "" && cfg.CircuitBreakerThreshold == 0 {
		log.Println("garryos: WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0 with WEBHOOK_URL set - a dead webhook endpoint will be retried on every reminder.")
	}

	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		log.Println("garryos: WARNING [P1]: WEBHOOK_SECRET not set - webhook deliveries will not be signed.")
	}

	if cfg.RedisAddr == "" {
		log.Println("garryos: INFO: REDIS_ADDR not set - per-trigger firing analytics disabled.")
	}
}
