package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cgarryZA/garryOS/internal/analytics"
	"github.com/cgarryZA/garryOS/internal/api"
	"github.com/cgarryZA/garryOS/internal/calendar"
	"github.com/cgarryZA/garryOS/internal/circuitbreaker"
	"github.com/cgarryZA/garryOS/internal/config"
	"github.com/cgarryZA/garryOS/internal/coursesync"
	"github.com/cgarryZA/garryOS/internal/degrees"
	"github.com/cgarryZA/garryOS/internal/eventbus"
	"github.com/cgarryZA/garryOS/internal/leaderelection"
	"github.com/cgarryZA/garryOS/internal/metrics"
	"github.com/cgarryZA/garryOS/internal/notify"
	"github.com/cgarryZA/garryOS/internal/reconciler"
	"github.com/cgarryZA/garryOS/internal/scheduler"
	"github.com/cgarryZA/garryOS/internal/store/postgres"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`garryos - personal planning backend

Usage:
  garryos <command>

Commands:
  serve      Start the planner, trigger scheduler and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL               PostgreSQL connection string (required)
  REDIS_ADDR                 Redis address for trigger analytics (optional)
  HTTP_ADDR                  HTTP server address (default: ":8080")
  CONFIG_FILE                Optional YAML file overlaid under the environment
  SWEEP_INTERVAL             Trigger sweep interval (default: "1m")

  DB_OP_TIMEOUT              Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME      Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  EVENT_HISTORY_CAPACITY     In-memory event history size (default: "1000")

  WEBHOOK_URL                Reminder webhook endpoint (empty disables notifier)
  WEBHOOK_SECRET             HMAC secret for webhook signatures
  WEBHOOK_TIMEOUT            Webhook request timeout (default: "30s")
  CIRCUIT_BREAKER_THRESHOLD  Failures before the webhook breaker opens (0 disables, default: "5")
  CIRCUIT_BREAKER_COOLDOWN   Breaker open duration (default: "2m")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED          Enable stale trigger repair (default: "false")
  RECONCILE_INTERVAL         How often to scan for stale triggers (default: "5m")
  RECONCILE_BATCH_SIZE       Max repairs per cycle (default: "100")

  LEADER_LOCK_KEY            Advisory lock key shared by all instances (0 = built-in)
  LEADER_RETRY_INTERVAL      Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL  Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(cfg)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("garryos: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	if err := probeLastFiredAtColumn(db); err != nil {
		fmt.Fprintf(os.Stderr, "schema probe failed (is the triggers table migrated?): %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)

	// Initialize metrics sink (optional). Metrics share the API listener.
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("garryos: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("garryos: METRICS_ENABLED not set; metrics disabled")
	}

	// Event bus: bounded in-memory history plus durable append into Postgres.
	busOpts := []eventbus.Option{
		eventbus.WithHistoryCapacity(cfg.EventHistoryCapacity),
		eventbus.WithDurableStore(store),
	}
	if metricsSink != nil {
		busOpts = append(busOpts, eventbus.WithMetrics(metricsSink))
	}
	bus := eventbus.New(busOpts...)

	sched := scheduler.New(
		scheduler.Config{SweepInterval: cfg.SweepInterval},
		store,
		bus,
	)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sched = sched.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("garryos: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("garryos: REDIS_ADDR not set; analytics disabled")
	}

	planner := calendar.New(store, bus).WithTimers(sched)
	degreeService := degrees.New(store).WithPlanner(planner)

	coordinator := coursesync.New(bus, store, store)
	if metricsSink != nil {
		coordinator = coordinator.WithMetrics(metricsSink)
	}
	coordinator.Start()

	// Webhook notifier for fired reminders (optional)
	var notifier *notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.New(notify.Config{
			URL:     cfg.WebhookURL,
			Secret:  cfg.WebhookSecret,
			Timeout: cfg.WebhookTimeout,
		}, bus, notify.NewHTTPWebhookSender())
		if cfg.CircuitBreakerThreshold > 0 {
			breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
			notifier = notifier.WithBreaker(breaker)
			log.Printf("garryos: webhook breaker enabled (threshold=%d, cooldown=%s)",
				cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		}
		if metricsSink != nil {
			notifier = notifier.WithMetrics(metricsSink)
		}
		notifier.Start()
		log.Printf("garryos: webhook notifier enabled (url=%s)", cfg.WebhookURL)
	} else {
		log.Println("garryos: WEBHOOK_URL not set; reminder webhooks disabled")
	}

	// Leader duties: the trigger sweep, restored one-shot timers and the
	// reconciler run on exactly one instance per database.
	var recon *reconciler.Reconciler
	if cfg.ReconcileEnabled {
		recon = reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				BatchSize: cfg.ReconcileBatchSize,
			},
			store,
		)
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}
		log.Printf("garryos: reconciler enabled (interval=%s, batch=%d)",
			cfg.ReconcileInterval, cfg.ReconcileBatchSize)
	} else {
		log.Println("garryos: RECONCILE_ENABLED not set; reconciler disabled")
	}

	var dutiesWg sync.WaitGroup
	onElected := func(leaderCtx context.Context) {
		triggers, err := store.ListActiveTimeTriggers(leaderCtx)
		if err != nil {
			log.Printf("garryos: timer restore query failed: %v", err)
		} else {
			planner.RestoreTimers(leaderCtx, triggers)
		}
		sched.Start()
		if recon != nil {
			dutiesWg.Add(1)
			go func() {
				defer dutiesWg.Done()
				recon.Run(leaderCtx)
			}()
		}
	}
	onDemoted := func() {
		sched.Shutdown()
		dutiesWg.Wait()
	}

	lockKey := cfg.LeaderLockKey
	if lockKey == 0 {
		lockKey = leaderelection.DefaultLockKey
	}
	elector := leaderelection.New(db, lockKey,
		cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval,
		onElected, onDemoted)
	if metricsSink != nil {
		elector = elector.WithMetrics(metricsSink)
	}

	electionCtx, cancelElection := context.WithCancel(context.Background())
	var electionWg sync.WaitGroup
	electionWg.Add(1)
	go func() {
		defer electionWg.Done()
		elector.Run(electionCtx)
	}()

	apiHandler := api.NewHandler(planner, degreeService, bus).
		WithHealthChecker(db).
		WithLeaderInfo(elector)

	mux := http.NewServeMux()
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("garryos: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("garryos: http server error: %v", err)
		}
	}()

	log.Printf("garryos: started (sweep=%s, http=%s)", cfg.SweepInterval, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("garryos: received signal %v, shutting down", received)

	// Phase 1: Resign leadership. Demotion stops the sweep, one-shot timers
	// and the reconciler before Run returns.
	log.Println("garryos: resigning leadership...")
	cancelElection()
	electionWg.Wait()
	log.Println("garryos: leader duties stopped")

	// Phase 2: Stop the sync coordinator (no new coursework sync)
	log.Println("garryos: stopping sync coordinator...")
	coordinator.Stop()
	log.Println("garryos: sync coordinator stopped")

	// Phase 3: Stop the notifier (a delivery in flight completes)
	if notifier != nil {
		log.Println("garryos: stopping notifier...")
		notifier.Stop()
		log.Println("garryos: notifier stopped")
	}

	// Phase 4: Stop HTTP server with graceful shutdown
	log.Println("garryos: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("garryos: http server shutdown error: %v", err)
	}
	log.Println("garryos: http server stopped")

	log.Println("garryos: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("garryos version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
