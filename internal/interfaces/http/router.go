// Package http exposes the chat webhook, the notification query API and the
// operational probes over gin.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/internal/interfaces/http/handlers"
	"github.com/turtacn/NoticeFlow/internal/interfaces/http/middleware"
)

// RouterConfig holds the handlers and settings for building the engine. Nil
// handlers leave their routes unregistered.
type RouterConfig struct {
	HealthHandler       *handlers.HealthHandler
	WebhookHandler      *handlers.WebhookHandler
	NotificationHandler *handlers.NotificationHandler
	OperationsHandler   *handlers.OperationsHandler

	WebhookPath  string
	WebhookToken string
	APIToken     string
	Mode         string

	Metrics    prometheus.MetricsCollector
	AppMetrics *prometheus.AppMetrics
	Logger     logging.Logger
	Logging    *middleware.LoggingConfig
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, cfg.AppMetrics, logCfg))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.WebhookHandler != nil && cfg.WebhookPath != "" {
		r.POST(cfg.WebhookPath,
			middleware.HeaderToken(middleware.WebhookTokenHeader, cfg.WebhookToken, logger),
			cfg.WebhookHandler.Receive)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.BearerToken(cfg.APIToken, logger))
	if cfg.NotificationHandler != nil {
		cfg.NotificationHandler.RegisterRoutes(api)
	}
	if cfg.OperationsHandler != nil {
		cfg.OperationsHandler.RegisterRoutes(api)
	}

	return r
}
