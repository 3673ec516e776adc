// Command apiserver serves the chat webhook, the notification query API and
// the operational probes.
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
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
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

	logger.Info("Starting NoticeFlow API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", logging.Err(err))
		os.Exit(1)
	}
	defer app.Close()
	app.WatchRules(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Serve(ctx, app); err != nil {
		logger.Error("API server exited with error", logging.Err(err))
		app.Close()
		os.Exit(1)
	}
	logger.Info("API server stopped")
}
