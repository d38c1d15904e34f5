// Package config loads and validates coordinator and worker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/storage/postgres"
)

// EnvPrefix scopes environment overrides, e.g. SUMMIT_SERVER_PORT.
const EnvPrefix = "SUMMIT"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Store       StoreConfig       `mapstructure:"store"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Events      EventsConfig      `mapstructure:"events"`
	HTTPClient  HTTPClientConfig  `mapstructure:"http_client"`
}

// ServerConfig controls the coordinator's diagnostics server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// QueueConfig selects the crawl queue transport.
type QueueConfig struct {
	Provider string        `mapstructure:"provider"`
	Prefix   string        `mapstructure:"prefix"`
	NATSURL  string        `mapstructure:"nats_url"`
	Replicas int           `mapstructure:"replicas"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// SourceConfig declares an index source for the memory store.
type SourceConfig struct {
	Host                   string   `mapstructure:"host"`
	Seeds                  []string `mapstructure:"seeds"`
	RefreshIntervalSeconds int64    `mapstructure:"refresh_interval_seconds"`
	DocumentTTL            int64    `mapstructure:"document_ttl"`
}

// StoreConfig selects task and index source persistence.
type StoreConfig struct {
	Provider string          `mapstructure:"provider"`
	Migrate  bool            `mapstructure:"migrate"`
	Postgres postgres.Config `mapstructure:"postgres"`
	Sources  []SourceConfig  `mapstructure:"sources"`
}

// CoordinatorConfig governs the coordinator's periodic loops.
type CoordinatorConfig struct {
	RoundInterval             time.Duration    `mapstructure:"round_interval"`
	HeartbeatInterval         time.Duration    `mapstructure:"heartbeat_interval"`
	TaskMonitorInterval       time.Duration    `mapstructure:"task_monitor_interval"`
	SourceRefreshInterval     time.Duration    `mapstructure:"source_refresh_interval"`
	EmptyQueueMonitorDuration time.Duration    `mapstructure:"empty_queue_monitor_duration"`
	DefaultRefreshInterval    time.Duration    `mapstructure:"default_refresh_interval"`
	RecoveryThreshold         int              `mapstructure:"recovery_threshold"`
	MaxFailCount              int              `mapstructure:"max_fail_count"`
	Workers                   []crawler.Worker `mapstructure:"workers"`
}

// WorkerConfig governs the worker role.
type WorkerConfig struct {
	Port                   int           `mapstructure:"port"`
	KeepAliveTTL           time.Duration `mapstructure:"keep_alive_ttl"`
	KeepAliveCheckInterval time.Duration `mapstructure:"keep_alive_check_interval"`
}

// EventsConfig configures the lifecycle event hub and its sinks.
type EventsConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	Publisher      string        `mapstructure:"publisher"`
	ProjectID      string        `mapstructure:"project_id"`
	Topic          string        `mapstructure:"topic"`
	Archive        ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig selects where retired task records are written.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// HTTPClientConfig bounds coordinator-to-worker calls.
type HTTPClientConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load builds a Config from an optional .env file, an optional config file and
// the SUMMIT_* environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.prefix", crawler.DefaultQueuePrefix)
	v.SetDefault("queue.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("queue.replicas", 1)
	v.SetDefault("queue.max_age", "0s")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.migrate", false)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("coordinator.round_interval", "5m")
	v.SetDefault("coordinator.heartbeat_interval", "2s")
	v.SetDefault("coordinator.task_monitor_interval", "5m")
	v.SetDefault("coordinator.source_refresh_interval", "15m")
	v.SetDefault("coordinator.empty_queue_monitor_duration", "10m")
	v.SetDefault("coordinator.default_refresh_interval", "24h")
	v.SetDefault("coordinator.recovery_threshold", 2)
	v.SetDefault("coordinator.max_fail_count", 3)
	v.SetDefault("worker.port", 8081)
	v.SetDefault("worker.keep_alive_ttl", "10s")
	v.SetDefault("worker.keep_alive_check_interval", "1s")
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_batch_events", 100)
	v.SetDefault("events.max_batch_wait", "1s")
	v.SetDefault("events.publisher", "none")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "summit-lifecycle")
	v.SetDefault("events.archive.provider", "none")
	v.SetDefault("events.archive.base_dir", "")
	v.SetDefault("events.archive.bucket", "")
	v.SetDefault("events.archive.prefix", "")
	v.SetDefault("http_client.timeout", "5s")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if c.Worker.Port <= 0 {
		errs = append(errs, errors.New("worker.port must be > 0"))
	}
	if !slices.Contains([]string{"memory", "jetstream"}, c.Queue.Provider) {
		errs = append(errs, fmt.Errorf("queue.provider %q must be memory or jetstream", c.Queue.Provider))
	}
	if c.Queue.Provider == "jetstream" && c.Queue.NATSURL == "" {
		errs = append(errs, errors.New("queue.nats_url is required for the jetstream provider"))
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.provider %q must be memory or postgres", c.Store.Provider))
	}
	for name, d := range map[string]time.Duration{
		"coordinator.round_interval":          c.Coordinator.RoundInterval,
		"coordinator.heartbeat_interval":      c.Coordinator.HeartbeatInterval,
		"coordinator.task_monitor_interval":   c.Coordinator.TaskMonitorInterval,
		"coordinator.source_refresh_interval": c.Coordinator.SourceRefreshInterval,
		"worker.keep_alive_check_interval":    c.Worker.KeepAliveCheckInterval,
		"http_client.timeout":                 c.HTTPClient.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	if c.Worker.KeepAliveTTL <= c.Coordinator.HeartbeatInterval+c.HTTPClient.Timeout {
		errs = append(errs, errors.New("worker.keep_alive_ttl must exceed coordinator.heartbeat_interval plus http_client.timeout"))
	}
	if c.Coordinator.MaxFailCount <= 0 {
		errs = append(errs, errors.New("coordinator.max_fail_count must be > 0"))
	}
	if c.Coordinator.RecoveryThreshold < 0 {
		errs = append(errs, errors.New("coordinator.recovery_threshold must be >= 0"))
	}
	seen := make(map[string]struct{}, len(c.Coordinator.Workers))
	for i, w := range c.Coordinator.Workers {
		switch {
		case w.ID == "":
			errs = append(errs, fmt.Errorf("coordinator.workers[%d].id is required", i))
		case w.URL == "":
			errs = append(errs, fmt.Errorf("coordinator.workers[%d].url is required", i))
		case w.AvailableSlots < 0:
			errs = append(errs, fmt.Errorf("coordinator.workers[%d].available_slots must be >= 0", i))
		}
		if _, dup := seen[w.ID]; dup && w.ID != "" {
			errs = append(errs, fmt.Errorf("coordinator.workers: duplicate id %q", w.ID))
		}
		seen[w.ID] = struct{}{}
	}
	for i, s := range c.Store.Sources {
		if s.Host == "" {
			errs = append(errs, fmt.Errorf("store.sources[%d].host is required", i))
		}
		if len(s.Seeds) == 0 {
			errs = append(errs, fmt.Errorf("store.sources[%d].seeds must not be empty", i))
		}
	}
	if !slices.Contains([]string{"none", "memory", "pubsub"}, c.Events.Publisher) {
		errs = append(errs, fmt.Errorf("events.publisher %q must be none, memory or pubsub", c.Events.Publisher))
	}
	if c.Events.Publisher == "pubsub" && (c.Events.ProjectID == "" || c.Events.Topic == "") {
		errs = append(errs, errors.New("events.project_id and events.topic are required for the pubsub publisher"))
	}
	switch c.Events.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Events.Archive.BaseDir == "" {
			errs = append(errs, errors.New("events.archive.base_dir is required for the local archive"))
		}
	case "gcs":
		if c.Events.Archive.Bucket == "" {
			errs = append(errs, errors.New("events.archive.bucket is required for the gcs archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.archive.provider %q is not supported", c.Events.Archive.Provider))
	}
	return errors.Join(errs...)
}

// IndexSources converts the configured sources into store records that are
// due immediately.
func (c StoreConfig) IndexSources() []crawler.IndexSource {
	out := make([]crawler.IndexSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, crawler.IndexSource{
			Host:                   s.Host,
			Seeds:                  append([]string(nil), s.Seeds...),
			RefreshIntervalSeconds: s.RefreshIntervalSeconds,
			DocumentTTL:            s.DocumentTTL,
		})
	}
	return out
}
