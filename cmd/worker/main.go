// Command worker runs the scheduled ingestion and dispatch passes and, when
// Kafka is enabled, consumes queued inbound chat events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/interfaces/cli"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	runOnStart := flag.Bool("run-on-start", false, "run ingestion and dispatch immediately instead of waiting a full interval")
	healthPort := flag.Int("health-port", 0, "port for /healthz, /readyz and /metrics (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *runOnStart {
		cfg.Scheduler.RunOnStart = true
	}
	if *healthPort > 0 {
		cfg.Scheduler.HealthPort = *healthPort
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	cli.Version = version

	logger.Info("Starting NoticeFlow worker", logging.String("version", version))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize worker", logging.Err(err))
		os.Exit(1)
	}
	defer app.Close()
	app.WatchRules(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.RunWorker(ctx, app); err != nil {
		logger.Error("Worker exited with error", logging.Err(err))
		app.Close()
		os.Exit(1)
	}
}
