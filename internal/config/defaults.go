package config

import "time"

const (
	DefaultServerPort  = 8080
	DefaultServerMode  = "release"
	DefaultWebhookPath = "/webhook/whatsapp"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "noticeflow"
	DefaultDBMaxConns = 10

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "noticeflow-worker"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultSourceURL     = "https://comunicaapi.pje.jus.br/api/v1/comunicacao"
	DefaultSourceTimeout = 30 * time.Second

	DefaultExtractionURL   = "https://api.openai.com/v1/chat/completions"
	DefaultExtractionModel = "gpt-4o-mini"

	DefaultRuleDefaultDays = 5
	DefaultTimezone        = "America/Sao_Paulo"

	DefaultDispatchMaxAttempts = 3
	DefaultInboundSeenCapacity = 100
	DefaultConfidenceThreshold = 0.7
)

// DefaultRuleTable is the jurisdiction x category table used when the
// configuration carries none.
func DefaultRuleTable() []RuleRow {
	return []RuleRow{
		{Jurisdiction: "TRT3", Category: "LABOR", Days: 8, RuleID: "TRT3_LABOR"},
		{Jurisdiction: "TJMG", Category: "SMALL_CLAIMS", Days: 10, RuleID: "TJMG_SMALL_CLAIMS"},
		{Jurisdiction: "TJMG", Category: "CIVIL", Days: 15, RuleID: "TJMG_CIVIL"},
		{Jurisdiction: "TJMG", Category: "CRIMINAL", Days: 15, RuleID: "TJMG_CRIMINAL"},
		{Jurisdiction: "TRF6", Category: "*", Days: 15, RuleID: "TRF6_ANY"},
	}
}

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
// Booleans cannot be defaulted this way and stay false unless configured.
func ApplyDefaults(cfg *Config) {
	applyDefaults(cfg, func(string) bool { return false })
}

// applyDefaults is ApplyDefaults for configurations read through viper.
// isSet reports keys given explicitly, whose zero values are kept where zero
// is meaningful.
func applyDefaults(cfg *Config, isSet func(key string) bool) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = DefaultWebhookPath
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = cfg.Database.MaxConns / 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// Redis. DB 0 is both the default and a valid explicit value.
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "noticeflow:"
	}
	if cfg.Redis.RecipientCacheTTL == 0 {
		cfg.Redis.RecipientCacheTTL = 10 * time.Minute
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.InboundTopic == "" {
		cfg.Kafka.InboundTopic = "chat.inbound"
	}
	if cfg.Kafka.IngestedTopic == "" {
		cfg.Kafka.IngestedTopic = "notice.ingested"
	}
	if cfg.Kafka.OutcomeTopic == "" {
		cfg.Kafka.OutcomeTopic = "dispatch.outcome"
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = "dead_letter.inbound"
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// Archive
	if cfg.Archive.Bucket == "" {
		cfg.Archive.Bucket = "noticeflow-source"
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "noticeflow"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Source
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = DefaultSourceURL
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = DefaultSourceTimeout
	}
	if cfg.Source.Label == "" {
		cfg.Source.Label = "DJEN"
	}
	if cfg.Source.Mode == "" {
		cfg.Source.Mode = "http"
	}

	// Extraction
	if cfg.Extraction.BaseURL == "" {
		cfg.Extraction.BaseURL = DefaultExtractionURL
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = DefaultExtractionModel
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 60 * time.Second
	}
	if cfg.Extraction.MaxTokens == 0 {
		cfg.Extraction.MaxTokens = 2000
	}

	// Messaging
	if cfg.Messaging.Timeout == 0 {
		cfg.Messaging.Timeout = 15 * time.Second
	}

	// Calendar
	if cfg.Calendar.HolidaysFile == "" {
		cfg.Calendar.HolidaysFile = "configs/holidays.yaml"
	}

	// Rules. default_days: 0 and an empty table are both valid.
	if cfg.Rules.DefaultDays == 0 && !isSet("rules.default_days") {
		cfg.Rules.DefaultDays = DefaultRuleDefaultDays
	}
	if len(cfg.Rules.Table) == 0 && !isSet("rules.table") {
		cfg.Rules.Table = DefaultRuleTable()
	}

	// Ingestion
	if cfg.Ingestion.Timezone == "" {
		cfg.Ingestion.Timezone = DefaultTimezone
	}
	if cfg.Ingestion.LockTTL == 0 {
		cfg.Ingestion.LockTTL = 30 * time.Minute
	}
	if cfg.Ingestion.Channel == "" {
		cfg.Ingestion.Channel = "WHATSAPP"
	}

	// Dispatch
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = DefaultDispatchMaxAttempts
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 100
	}
	if cfg.Dispatch.LockTTL == 0 {
		cfg.Dispatch.LockTTL = 10 * time.Minute
	}

	// Inbound
	if cfg.Inbound.SeenCapacity == 0 {
		cfg.Inbound.SeenCapacity = DefaultInboundSeenCapacity
	}
	if cfg.Inbound.SeenTTL == 0 {
		cfg.Inbound.SeenTTL = 24 * time.Hour
	}
	if cfg.Inbound.ConfidenceThreshold == 0 {
		cfg.Inbound.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Inbound.UpcomingWindowDays == 0 {
		cfg.Inbound.UpcomingWindowDays = 3
	}

	// Scheduler
	if cfg.Scheduler.IngestInterval == 0 {
		cfg.Scheduler.IngestInterval = time.Hour
	}
	if cfg.Scheduler.DispatchInterval == 0 {
		cfg.Scheduler.DispatchInterval = 5 * time.Minute
	}
}
