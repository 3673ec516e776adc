// Package config defines the NoticeFlow configuration tree. Only plain data
// types and validation live here; loading is in loader.go.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	// Validate resolves ingestion.timezone; containers often ship without zoneinfo.
	_ "time/tzdata"
)

// ServerConfig holds HTTP server tunables for the webhook and operations
// endpoints.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WebhookPath     string        `mapstructure:"webhook_path"`
	// WebhookToken, when set, must match the X-Webhook-Token header.
	WebhookToken string `mapstructure:"webhook_token"`
	// APIToken, when set, is required as a bearer token on /api/v1.
	APIToken string `mapstructure:"api_token"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// MigrationPath overrides the embedded migrations with a directory.
	MigrationPath string `mapstructure:"migration_path"`
}

// DSN renders the connection URL understood by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds Redis parameters. Redis backs the recipient directory
// cache, the ingestion run lock and the durable inbound seen-store.
type RedisConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Addr              string        `mapstructure:"addr"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	PoolSize          int           `mapstructure:"pool_size"`
	MinIdleConns      int           `mapstructure:"min_idle_conns"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	RecipientCacheTTL time.Duration `mapstructure:"recipient_cache_ttl"`
}

// KafkaConfig holds broker parameters and topic names.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	InboundTopic    string   `mapstructure:"inbound_topic"`
	IngestedTopic   string   `mapstructure:"ingested_topic"`
	OutcomeTopic    string   `mapstructure:"outcome_topic"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"`
	MaxRetries      int      `mapstructure:"max_retries"`
}

// ArchiveConfig holds the S3-compatible bucket that keeps raw source
// responses for replay.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// SourceConfig describes the court notification feed.
type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Label is recorded on every QueryLog row.
	Label string `mapstructure:"label"`
	// Mode is "http" (live feed) or "replay" (archived responses).
	Mode string `mapstructure:"mode"`
}

// ExtractionConfig describes the OpenAI-compatible completion endpoint used
// for structured extraction and, optionally, intent classification.
type ExtractionConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	// IntentEnabled routes inbound text through the model. When false the
	// keyword classifier is used.
	IntentEnabled bool `mapstructure:"intent_enabled"`
}

// MessagingConfig describes the chat gateway.
type MessagingConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	InstanceKey string        `mapstructure:"instance_key"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Disabled logs messages instead of sending them and reports SENT.
	Disabled bool `mapstructure:"disabled"`
}

// CalendarConfig points at the holiday file and jurisdiction aliases.
type CalendarConfig struct {
	HolidaysFile string            `mapstructure:"holidays_file"`
	Aliases      map[string]string `mapstructure:"aliases"`
}

// RuleRow is one jurisdiction x category row of the deadline table.
// Category "*" matches any category.
type RuleRow struct {
	Jurisdiction string `mapstructure:"jurisdiction" yaml:"jurisdiction"`
	Category     string `mapstructure:"category" yaml:"category"`
	Days         int    `mapstructure:"days" yaml:"days"`
	RuleID       string `mapstructure:"rule_id" yaml:"rule_id"`
}

// RulesConfig is the deadline rule table.
type RulesConfig struct {
	DefaultDays int       `mapstructure:"default_days"`
	Table       []RuleRow `mapstructure:"table"`
}

// IngestionConfig tunes the ingestion run.
type IngestionConfig struct {
	// BypassWindow keeps records whose publication date is not the target day.
	BypassWindow bool `mapstructure:"bypass_window"`
	// Timezone decides which civil day "today" is.
	Timezone string        `mapstructure:"timezone"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	Channel  string        `mapstructure:"channel"`
}

// DispatchConfig tunes the dispatch pass.
type DispatchConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BatchSize   int `mapstructure:"batch_size"`
	// LockTTL bounds how long a crashed worker can block dispatch passes.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// InboundConfig tunes the inbound router.
type InboundConfig struct {
	SeenCapacity        int           `mapstructure:"seen_capacity"`
	DurableSeen         bool          `mapstructure:"durable_seen"`
	SeenTTL             time.Duration `mapstructure:"seen_ttl"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	UpcomingWindowDays  int           `mapstructure:"upcoming_window_days"`
}

// SchedulerConfig drives the worker's periodic passes.
type SchedulerConfig struct {
	IngestInterval   time.Duration `mapstructure:"ingest_interval"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
	// HealthPort serves the worker's probes and metrics. Zero disables it.
	HealthPort int `mapstructure:"health_port"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Source     SourceConfig     `mapstructure:"source"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Inbound    InboundConfig    `mapstructure:"inbound"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// Validate performs semantic validation of the populated Config and returns
// the first problem found. Callers treat any error as fatal.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return fmt.Errorf("config: server.webhook_path %q must start with /", c.Server.WebhookPath)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}
	if c.Inbound.DurableSeen && !c.Redis.Enabled {
		return fmt.Errorf("config: inbound.durable_seen requires redis.enabled")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		return fmt.Errorf("config: archive.endpoint and archive.bucket are required when archive is enabled")
	}

	switch c.Source.Mode {
	case "http":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("config: source.base_url is required in http mode")
		}
	case "replay":
		if !c.Archive.Enabled {
			return fmt.Errorf("config: source.mode replay requires archive.enabled")
		}
	default:
		return fmt.Errorf("config: source.mode %q is invalid; expected http|replay", c.Source.Mode)
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("config: source.timeout must be positive")
	}

	if !c.Messaging.Disabled && (c.Messaging.BaseURL == "" || c.Messaging.InstanceKey == "") {
		return fmt.Errorf("config: messaging.base_url and messaging.instance_key are required unless messaging.disabled")
	}

	if c.Rules.DefaultDays < 0 {
		return fmt.Errorf("config: rules.default_days must be >= 0, got %d", c.Rules.DefaultDays)
	}
	for i, row := range c.Rules.Table {
		if row.Jurisdiction == "" || row.Category == "" || row.RuleID == "" {
			return fmt.Errorf("config: rules.table[%d] needs jurisdiction, category and rule_id", i)
		}
		if row.Days < 0 {
			return fmt.Errorf("config: rules.table[%d].days must be >= 0, got %d", i, row.Days)
		}
	}

	if _, err := time.LoadLocation(c.Ingestion.Timezone); err != nil {
		return fmt.Errorf("config: ingestion.timezone %q: %w", c.Ingestion.Timezone, err)
	}

	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("config: dispatch.max_attempts must be >= 1, got %d", c.Dispatch.MaxAttempts)
	}

	if c.Inbound.SeenCapacity < 1 {
		return fmt.Errorf("config: inbound.seen_capacity must be >= 1, got %d", c.Inbound.SeenCapacity)
	}
	if c.Inbound.ConfidenceThreshold < 0 || c.Inbound.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: inbound.confidence_threshold must be within [0, 1]")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
