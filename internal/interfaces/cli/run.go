package cli

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NoticeFlow/internal/application/dispatch"
	"github.com/turtacn/NoticeFlow/internal/application/ingestion"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/NoticeFlow/internal/interfaces/http"
	"github.com/turtacn/NoticeFlow/internal/interfaces/http/handlers"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// apiRouterConfig wires every handler of the public API.
func apiRouterConfig(app *App) httpapi.RouterConfig {
	cfg := app.Config
	webhook := handlers.NewWebhookHandler(app.Inbound, app.Logger)
	if app.Producer != nil {
		webhook = webhook.WithPublisher(app.Producer, cfg.Kafka.InboundTopic)
	}
	return httpapi.RouterConfig{
		HealthHandler:       handlers.NewHealthHandler(Version, app.HealthCheckers()...),
		WebhookHandler:      webhook,
		NotificationHandler: handlers.NewNotificationHandler(app.Recipients, app.Notifications, app.Location),
		OperationsHandler:   handlers.NewOperationsHandler(app.Ingestion, app.Dispatch, app.Logger),
		WebhookPath:         cfg.Server.WebhookPath,
		WebhookToken:        cfg.Server.WebhookToken,
		APIToken:            cfg.Server.APIToken,
		Mode:                cfg.Server.Mode,
		Metrics:             app.Collector,
		AppMetrics:          app.Metrics,
		Logger:              app.Logger,
	}
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, app *App) error {
	engine := httpapi.NewRouter(apiRouterConfig(app))
	server := httpapi.NewServer(app.Config.Server, engine, app.Logger)
	return serveUntilDone(ctx, server)
}

func serveUntilDone(ctx context.Context, server *httpapi.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	}
}

// RunWorker runs the scheduled ingestion and dispatch passes, the inbound
// topic consumer when Kafka is enabled, and the optional probe server. It
// blocks until ctx is cancelled or a component fails.
func RunWorker(ctx context.Context, app *App) error {
	cfg := app.Config

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		var err error
		consumer, err = kafka.NewConsumerFromConfig(cfg.Kafka, []string{cfg.Kafka.InboundTopic}, app.Producer, app.Logger,
			kafka.WithConsumerMetrics(app.Metrics))
		if err != nil {
			return err
		}
		consumer.Subscribe(cfg.Kafka.InboundTopic, app.Inbound.ConsumeMessage)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, cfg.Scheduler.IngestInterval, cfg.Scheduler.RunOnStart, func(ctx context.Context) {
			runIngestion(ctx, app)
		})
	})
	g.Go(func() error {
		return every(ctx, cfg.Scheduler.DispatchInterval, cfg.Scheduler.RunOnStart, func(ctx context.Context) {
			runDispatch(ctx, app)
		})
	})

	if consumer != nil {
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if cfg.Scheduler.HealthPort > 0 {
		probeCfg := cfg.Server
		probeCfg.Port = cfg.Scheduler.HealthPort
		engine := httpapi.NewRouter(httpapi.RouterConfig{
			HealthHandler: handlers.NewHealthHandler(Version, app.HealthCheckers()...),
			Metrics:       app.Collector,
			AppMetrics:    app.Metrics,
			Mode:          cfg.Server.Mode,
			Logger:        app.Logger,
		})
		server := httpapi.NewServer(probeCfg, engine, app.Logger)
		g.Go(func() error { return serveUntilDone(ctx, server) })
	}

	app.Logger.Info("Worker started",
		logging.Duration("ingest_interval", cfg.Scheduler.IngestInterval),
		logging.Duration("dispatch_interval", cfg.Scheduler.DispatchInterval),
		logging.Bool("consumer", cfg.Kafka.Enabled))

	err := g.Wait()
	app.Logger.Info("Worker stopped")
	return err
}

// every calls fn on each tick until ctx is done. fn is never run
// concurrently with itself.
func every(ctx context.Context, interval time.Duration, immediately bool, fn func(context.Context)) error {
	if interval <= 0 {
		return nil
	}
	if immediately {
		fn(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func runIngestion(ctx context.Context, app *App) {
	report, err := app.Ingestion.Run(ctx)
	switch {
	case errors.Is(err, ingestion.ErrRunInProgress):
		app.Logger.Info("Skipping scheduled ingestion, another run holds the lock")
	case err != nil && report == nil:
		app.Logger.Error("Scheduled ingestion could not start", logging.Err(err))
	case err != nil:
		app.Logger.Error("Scheduled ingestion failed",
			logging.String("execution_id", report.ExecutionID),
			logging.Err(err))
	}
}

func runDispatch(ctx context.Context, app *App) {
	_, err := app.Dispatch.RunPending(ctx)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrPassInProgress):
		app.Logger.Info("Skipping scheduled dispatch, another pass is running")
	default:
		app.Logger.Error("Scheduled dispatch pass failed", logging.Err(err))
	}
}
