package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/NoticeFlow/internal/application/dispatch"
	"github.com/turtacn/NoticeFlow/internal/application/inbound"
	"github.com/turtacn/NoticeFlow/internal/application/ingestion"
	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/internal/domain/deadline"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/calendarfile"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/chatgateway"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/redis"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/extraction"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/source"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/storage/minio"
	"github.com/turtacn/NoticeFlow/internal/interfaces/http/handlers"
)

const (
	ingestionLockName = "lock:ingestion"
	dispatchLockName  = "lock:dispatch"
)

// publisher is what the pipelines need from the broker.
type publisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// App holds the wired process: infrastructure clients, repositories and the
// three pipelines. Optional infrastructure (Redis, Kafka, archive) is nil
// when disabled.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Location  *time.Location

	DB       *postgres.Connection
	Redis    *redis.Client
	Producer *kafka.Producer
	Archive  *minio.Client

	Engine        *deadline.Engine
	Recipients    notice.RecipientRepository
	Notifications notice.NotificationRepository

	// RecipientCache is nil when Redis is disabled.
	RecipientCache *redis.CachedRecipients

	Ingestion *ingestion.Pipeline
	Dispatch  *dispatch.Pipeline
	Inbound   *inbound.Router

	publisher publisher
	closers   []func() error
}

// NewApp connects to every configured backend and builds the pipelines. On
// failure everything opened so far is closed.
func NewApp(cfg *config.Config, logger logging.Logger) (app *App, err error) {
	loc, err := time.LoadLocation(cfg.Ingestion.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Ingestion.Timezone, err)
	}
	app = &App{Config: cfg, Logger: logger, Location: loc}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err := app.initMetrics(); err != nil {
		return nil, err
	}
	if err := app.initInfrastructure(); err != nil {
		return nil, err
	}
	if app.Engine, err = BuildEngine(cfg); err != nil {
		return nil, err
	}
	if err := app.initPipelines(); err != nil {
		return nil, err
	}

	logger.Info("Application initialized",
		logging.Bool("redis", app.Redis != nil),
		logging.Bool("kafka", app.Producer != nil),
		logging.Bool("archive", app.Archive != nil),
		logging.String("source_mode", cfg.Source.Mode),
		logging.String("timezone", loc.String()))
	return app, nil
}

func (a *App) initMetrics() error {
	if !a.Config.Metrics.Enabled {
		a.Collector = prometheus.NewNopCollector()
		a.Metrics = prometheus.NewNopAppMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:      a.Config.Metrics.Namespace,
		RuntimeMetrics: true,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.Collector = collector
	a.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

func (a *App) initInfrastructure() error {
	cfg := a.Config

	db, err := postgres.NewConnection(cfg.Database, a.Logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, a.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.Redis = rc
		a.closers = append(a.closers, rc.Close)
	}

	a.publisher = kafka.NopPublisher{Logger: a.Logger}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducerFromConfig(cfg.Kafka, a.Logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		a.Producer = producer
		a.publisher = producer
		a.closers = append(a.closers, producer.Close)
	}

	if cfg.Archive.Enabled {
		mc, err := minio.NewClient(cfg.Archive, a.Logger)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		a.Archive = mc
		a.closers = append(a.closers, mc.Close)
	}
	return nil
}

func (a *App) initPipelines() error {
	cfg := a.Config
	log := a.Logger

	withMetrics := repositories.WithMetrics(a.Metrics)
	var recipients notice.RecipientRepository = repositories.NewRecipientRepo(a.DB, log, withMetrics)
	if a.Redis != nil {
		cache := redis.NewRedisCache(a.Redis, log, cfg.Redis.RecipientCacheTTL, redis.WithCacheMetrics(a.Metrics, "recipients"))
		a.RecipientCache = redis.NewCachedRecipients(recipients, cache, cfg.Redis.RecipientCacheTTL)
		recipients = a.RecipientCache
	}
	a.Recipients = recipients
	a.Notifications = repositories.NewNotificationRepo(a.DB, log, withMetrics)

	src, bypass, err := a.buildSource()
	if err != nil {
		return err
	}

	llm := extraction.NewClient(cfg.Extraction, a.Metrics, log)
	deps := ingestion.Dependencies{
		Recipients:    a.Recipients,
		Notifications: a.Notifications,
		RunLogs:       repositories.NewRunLogRepo(a.DB, log, withMetrics),
		Source:        src,
		Extractor:     extraction.NewExtractor(llm, log),
		Engine:        a.Engine,
		Publisher:     a.publisher,
		Metrics:       a.Metrics,
	}
	if a.Redis != nil {
		deps.Lock = redis.NewMutex(a.Redis, ingestionLockName, log, redis.WithLockTTL(cfg.Ingestion.LockTTL))
	}
	a.Ingestion, err = ingestion.NewPipeline(deps, ingestion.Config{
		BypassWindow:  cfg.Ingestion.BypassWindow || bypass,
		Location:      a.Location,
		FetchTimeout:  cfg.Source.Timeout,
		Channel:       notice.Channel(cfg.Ingestion.Channel),
		SourceLabel:   cfg.Source.Label,
		IngestedTopic: cfg.Kafka.IngestedTopic,
	}, log)
	if err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}

	messenger, err := chatgateway.NewMessenger(cfg.Messaging, log)
	if err != nil {
		return fmt.Errorf("messaging: %w", err)
	}
	dispatchOpts := []dispatch.Option{
		dispatch.WithPublisher(a.publisher),
		dispatch.WithMetrics(a.Metrics),
	}
	if a.Redis != nil {
		dispatchOpts = append(dispatchOpts,
			dispatch.WithLock(redis.NewMutex(a.Redis, dispatchLockName, log, redis.WithLockTTL(cfg.Dispatch.LockTTL))))
	}
	a.Dispatch = dispatch.NewPipeline(
		repositories.NewDispatchRepo(a.DB, log, withMetrics),
		a.Notifications,
		dispatch.NewRenderer(a.Location),
		messenger,
		dispatch.Config{
			MaxAttempts:  cfg.Dispatch.MaxAttempts,
			BatchSize:    cfg.Dispatch.BatchSize,
			OutcomeTopic: cfg.Kafka.OutcomeTopic,
		},
		log,
		dispatchOpts...,
	)

	var classifier conversation.Classifier = inbound.NewKeywordClassifier(time.Now)
	if cfg.Extraction.IntentEnabled {
		classifier = extraction.NewLLMClassifier(llm)
	}
	opts := []inbound.Option{
		inbound.WithProcessedSet(inbound.NewProcessedSet(cfg.Inbound.SeenCapacity)),
		inbound.WithMetrics(a.Metrics),
	}
	if a.Redis != nil && cfg.Inbound.DurableSeen {
		opts = append(opts, inbound.WithSeenStore(redis.NewSeenStore(a.Redis, cfg.Inbound.SeenTTL)))
	}
	a.Inbound = inbound.NewRouter(a.Recipients, a.Notifications, classifier, a.Dispatch, inbound.Config{
		ConfidenceThreshold: cfg.Inbound.ConfidenceThreshold,
		UpcomingWindowDays:  cfg.Inbound.UpcomingWindowDays,
		Location:            a.Location,
	}, log, opts...)
	return nil
}

// buildSource picks the live feed or the archive replay. Replayed responses
// are not from today, so replay also bypasses the window filter.
func (a *App) buildSource() (ingestion.Source, bool, error) {
	switch a.Config.Source.Mode {
	case "replay":
		if a.Archive == nil {
			return nil, false, fmt.Errorf("source: replay mode requires archive.enabled")
		}
		return source.NewReplaySource(minio.NewSourceArchive(a.Archive, a.Logger), a.Logger), true, nil
	default:
		var opts []source.Option
		if a.Archive != nil {
			opts = append(opts, source.WithArchiver(minio.NewSourceArchive(a.Archive, a.Logger)))
		}
		return source.NewHTTPSource(a.Config.Source, a.Logger, opts...), false, nil
	}
}

// HealthCheckers returns the readiness checks for the configured backends.
func (a *App) HealthCheckers() []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{postgresHealth{conn: a.DB}}
	if a.Redis != nil {
		checkers = append(checkers, redisHealth{client: a.Redis})
	}
	if a.Archive != nil {
		checkers = append(checkers, archiveHealth{client: a.Archive})
	}
	return checkers
}

// WatchRules hot-swaps the deadline rule table when the config file changes.
// Other settings need a restart.
func (a *App) WatchRules(configPath string) {
	if configPath == "" {
		return
	}
	config.Watch(configPath, func(cfg *config.Config) {
		table, err := BuildRuleTable(cfg.Rules)
		if err != nil {
			a.Logger.Warn("Ignoring invalid rule table", logging.Err(err))
			return
		}
		a.Engine.SwapTable(table)
		a.Logger.Info("Deadline rule table reloaded", logging.Int("rows", len(table.Rows())))
	}, func(err error) {
		a.Logger.Warn("Ignoring invalid configuration revision", logging.Err(err))
	})
}

// Close releases every opened client in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource", logging.Err(err))
		}
	}
	a.closers = nil
}

// BuildRuleTable converts the configured rows into a deadline table.
func BuildRuleTable(rc config.RulesConfig) (*deadline.RuleTable, error) {
	rows := make([]deadline.Row, 0, len(rc.Table))
	for _, r := range rc.Table {
		rows = append(rows, deadline.Row{
			Jurisdiction: r.Jurisdiction,
			Category:     r.Category,
			Days:         r.Days,
			RuleID:       r.RuleID,
		})
	}
	return deadline.NewRuleTable(rows, rc.DefaultDays)
}

// BuildEngine loads the holiday file and the rule table. It needs no
// backend, so the deadline tool uses it directly.
func BuildEngine(cfg *config.Config) (*deadline.Engine, error) {
	calendars, err := calendarfile.Load(cfg.Calendar.HolidaysFile, cfg.Calendar.Aliases)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	table, err := BuildRuleTable(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return deadline.NewEngine(calendars, table)
}

type postgresHealth struct{ conn *postgres.Connection }

func (postgresHealth) Name() string { return "postgres" }
func (h postgresHealth) Check(ctx context.Context) error { return h.conn.HealthCheck(ctx) }

type redisHealth struct{ client *redis.Client }

func (redisHealth) Name() string { return "redis" }
func (h redisHealth) Check(ctx context.Context) error { return h.client.Ping(ctx) }

type archiveHealth struct{ client *minio.Client }

func (archiveHealth) Name() string { return "archive" }
func (h archiveHealth) Check(ctx context.Context) error { return h.client.HealthCheck(ctx) }
