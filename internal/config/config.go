package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the garryos application.
// Values are loaded from environment variables, optionally overlaid on a
// YAML file (CONFIG_FILE). Environment variables always win.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`
	ConfigFile  string `json:"config_file,omitempty"`

	SweepInterval    time.Duration `json:"-"`
	SweepIntervalStr string        `json:"sweep_interval"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// EventHistoryCapacity bounds the in-memory event ring buffer.
	EventHistoryCapacity int `json:"event_history_capacity"`

	// WebhookURL: empty disables the webhook notifier.
	WebhookURL        string        `json:"webhook_url,omitempty"`
	WebhookSecret     string        `json:"webhook_secret,omitempty"`
	WebhookTimeout    time.Duration `json:"-"`
	WebhookTimeoutStr string        `json:"webhook_timeout"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	ReconcileEnabled     bool          `json:"reconcile_enabled"`
	ReconcileInterval    time.Duration `json:"-"`
	ReconcileIntervalStr string        `json:"reconcile_interval"`
	ReconcileBatchSize   int           `json:"reconcile_batch_size"`

	// LeaderLockKey: all instances sharing the same database must use the
	// same key. 0 means the built-in default.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`
	LeaderRetryInterval    time.Duration `json:"-"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect
	// local connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
	LeaderHeartbeatInterval    time.Duration `json:"-"`
}

// fileConfig mirrors Config for the YAML overlay. Pointers distinguish
// "absent from file" from zero values.
type fileConfig struct {
	DatabaseURL             string `yaml:"database_url"`
	RedisAddr               string `yaml:"redis_addr"`
	HTTPAddr                string `yaml:"http_addr"`
	SweepInterval           string `yaml:"sweep_interval"`
	DBOpTimeout             string `yaml:"db_op_timeout"`
	DBMaxOpenConns          *int   `yaml:"db_max_open_conns"`
	DBMaxIdleConns          *int   `yaml:"db_max_idle_conns"`
	DBConnMaxLifetime       string `yaml:"db_conn_max_lifetime"`
	DBConnMaxIdleTime       string `yaml:"db_conn_max_idle_time"`
	HTTPShutdownTimeout     string `yaml:"http_shutdown_timeout"`
	EventHistoryCapacity    *int   `yaml:"event_history_capacity"`
	WebhookURL              string `yaml:"webhook_url"`
	WebhookSecret           string `yaml:"webhook_secret"`
	WebhookTimeout          string `yaml:"webhook_timeout"`
	CircuitBreakerThreshold *int   `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  string `yaml:"circuit_breaker_cooldown"`
	MetricsEnabled          *bool  `yaml:"metrics_enabled"`
	MetricsPath             string `yaml:"metrics_path"`
	ReconcileEnabled        *bool  `yaml:"reconcile_enabled"`
	ReconcileInterval       string `yaml:"reconcile_interval"`
	ReconcileBatchSize      *int   `yaml:"reconcile_batch_size"`
	LeaderLockKey           *int64 `yaml:"leader_lock_key"`
	LeaderRetryInterval     string `yaml:"leader_retry_interval"`
	LeaderHeartbeatInterval string `yaml:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
// If CONFIG_FILE points at a YAML file, its values fill in whatever the
// environment left unset.
func Load() Config {
	cfg := Config{
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		ConfigFile:                 os.Getenv("CONFIG_FILE"),
		SweepIntervalStr:           os.Getenv("SWEEP_INTERVAL"),
		DBOpTimeoutStr:             os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:       os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		WebhookURL:                 os.Getenv("WEBHOOK_URL"),
		WebhookSecret:              os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeoutStr:          os.Getenv("WEBHOOK_TIMEOUT"),
		CircuitBreakerCooldownStr:  os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		ReconcileEnabled:           os.Getenv("RECONCILE_ENABLED") == "true",
		ReconcileIntervalStr:       os.Getenv("RECONCILE_INTERVAL"),
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	if capStr := os.Getenv("EVENT_HISTORY_CAPACITY"); capStr != "" {
		if n, err := parseInt(capStr); err == nil && n > 0 {
			cfg.EventHistoryCapacity = n
		} else {
			log.Printf("config: invalid EVENT_HISTORY_CAPACITY %q (must be a positive integer), using default 1000", capStr)
		}
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	} else {
		cfg.CircuitBreakerThreshold = -1 // marker: unset, default after overlay
	}

	if batchStr := os.Getenv("RECONCILE_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.ReconcileBatchSize = batch
		}
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using built-in default", lockKeyStr)
		}
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}

	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			log.Printf("config: failed to apply %s: %v", cfg.ConfigFile, err)
		}
	}

	applyDefaults(&cfg)
	parseDurations(&cfg)

	return cfg
}

// applyFile overlays YAML file values onto fields the environment left
// unset. Environment variables always take precedence.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	overlayString(&c.DatabaseURL, file.DatabaseURL)
	overlayString(&c.RedisAddr, file.RedisAddr)
	overlayString(&c.HTTPAddr, file.HTTPAddr)
	overlayString(&c.SweepIntervalStr, file.SweepInterval)
	overlayString(&c.DBOpTimeoutStr, file.DBOpTimeout)
	overlayString(&c.DBConnMaxLifetimeStr, file.DBConnMaxLifetime)
	overlayString(&c.DBConnMaxIdleTimeStr, file.DBConnMaxIdleTime)
	overlayString(&c.HTTPShutdownTimeoutStr, file.HTTPShutdownTimeout)
	overlayString(&c.WebhookURL, file.WebhookURL)
	overlayString(&c.WebhookSecret, file.WebhookSecret)
	overlayString(&c.WebhookTimeoutStr, file.WebhookTimeout)
	overlayString(&c.CircuitBreakerCooldownStr, file.CircuitBreakerCooldown)
	overlayString(&c.MetricsPath, file.MetricsPath)
	overlayString(&c.ReconcileIntervalStr, file.ReconcileInterval)
	overlayString(&c.LeaderRetryIntervalStr, file.LeaderRetryInterval)
	overlayString(&c.LeaderHeartbeatIntervalStr, file.LeaderHeartbeatInterval)

	if c.DBMaxOpenConns == 0 && file.DBMaxOpenConns != nil {
		c.DBMaxOpenConns = *file.DBMaxOpenConns
	}
	if c.DBMaxIdleConns == 0 && file.DBMaxIdleConns != nil {
		c.DBMaxIdleConns = *file.DBMaxIdleConns
	}
	if c.EventHistoryCapacity == 0 && file.EventHistoryCapacity != nil {
		c.EventHistoryCapacity = *file.EventHistoryCapacity
	}
	if c.CircuitBreakerThreshold == -1 && file.CircuitBreakerThreshold != nil {
		c.CircuitBreakerThreshold = *file.CircuitBreakerThreshold
	}
	if c.ReconcileBatchSize == 0 && file.ReconcileBatchSize != nil {
		c.ReconcileBatchSize = *file.ReconcileBatchSize
	}
	if c.LeaderLockKey == 0 && file.LeaderLockKey != nil {
		c.LeaderLockKey = *file.LeaderLockKey
	}
	if os.Getenv("METRICS_ENABLED") == "" && file.MetricsEnabled != nil {
		c.MetricsEnabled = *file.MetricsEnabled
	}
	if os.Getenv("RECONCILE_ENABLED") == "" && file.ReconcileEnabled != nil {
		c.ReconcileEnabled = *file.ReconcileEnabled
	}

	return nil
}

// overlayString sets dst from src only when dst is empty.
func overlayString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

// applyDefaults fills any field still unset after env and file overlay.
func applyDefaults(cfg *Config) {
	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.SweepIntervalStr == "" {
		cfg.SweepIntervalStr = "1m"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.EventHistoryCapacity == 0 {
		cfg.EventHistoryCapacity = 1000
	}
	if cfg.WebhookTimeoutStr == "" {
		cfg.WebhookTimeoutStr = "30s"
	}
	if cfg.CircuitBreakerThreshold == -1 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "5m"
	}
	if cfg.ReconcileBatchSize == 0 {
		cfg.ReconcileBatchSize = 100
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}
}

// parseDurations parses the string duration fields; validation is handled
// separately by Validate().
func parseDurations(cfg *Config) {
	if d, err := time.ParseDuration(cfg.SweepIntervalStr); err == nil {
		cfg.SweepInterval = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.WebhookTimeoutStr); err == nil {
		cfg.WebhookTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileIntervalStr); err == nil {
		cfg.ReconcileInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string `json:"database_url"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		HTTPAddr                string `json:"http_addr"`
		ConfigFile              string `json:"config_file,omitempty"`
		SweepInterval           string `json:"sweep_interval"`
		DBOpTimeout             string `json:"db_op_timeout"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		EventHistoryCapacity    int    `json:"event_history_capacity"`
		WebhookURL              string `json:"webhook_url,omitempty"`
		WebhookSecret           string `json:"webhook_secret,omitempty"`
		WebhookTimeout          string `json:"webhook_timeout"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		ReconcileEnabled        bool   `json:"reconcile_enabled"`
		ReconcileInterval       string `json:"reconcile_interval"`
		ReconcileBatchSize      int    `json:"reconcile_batch_size"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		ConfigFile:              c.ConfigFile,
		SweepInterval:           c.SweepIntervalStr,
		DBOpTimeout:             c.DBOpTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		EventHistoryCapacity:    c.EventHistoryCapacity,
		WebhookURL:              c.WebhookURL,
		WebhookSecret:           maskAll(c.WebhookSecret),
		WebhookTimeout:          c.WebhookTimeoutStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		ReconcileEnabled:        c.ReconcileEnabled,
		ReconcileInterval:       c.ReconcileIntervalStr,
		ReconcileBatchSize:      c.ReconcileBatchSize,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

// maskAll masks a secret entirely.
func maskAll(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
