package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/application/dispatch"
	"github.com/turtacn/NoticeFlow/internal/application/ingestion"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
)

// IngestionRunner runs one ingestion pass.
type IngestionRunner interface {
	Run(ctx context.Context) (*ingestion.RunReport, error)
}

// DispatchRunner sends the pending dispatches.
type DispatchRunner interface {
	RunPending(ctx context.Context) (*dispatch.DispatchReport, error)
}

// OperationsHandler triggers ingestion and dispatch runs on demand.
type OperationsHandler struct {
	ingestion IngestionRunner
	dispatch  DispatchRunner
	logger    logging.Logger
}

// NewOperationsHandler creates a new OperationsHandler.
func NewOperationsHandler(ing IngestionRunner, dsp DispatchRunner, logger logging.Logger) *OperationsHandler {
	return &OperationsHandler{ingestion: ing, dispatch: dsp, logger: logger}
}

// RegisterRoutes registers the operations routes on an /api/v1 group.
func (h *OperationsHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/ingestions", h.TriggerIngestion)
	r.POST("/dispatches", h.TriggerDispatch)
}

// TriggerIngestion handles POST /ingestions. A run already holding the lock
// yields 409. A run that fails after starting still returns its report.
func (h *OperationsHandler) TriggerIngestion(c *gin.Context) {
	report, err := h.ingestion.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil && report == nil {
		respondError(c, err)
		return
	}
	if err != nil {
		h.logger.Warn("On-demand ingestion run failed", logging.Err(err),
			logging.String("execution_id", report.ExecutionID))
	}
	respondOK(c, http.StatusOK, report)
}

// TriggerDispatch handles POST /dispatches. A pass already running yields 409.
func (h *OperationsHandler) TriggerDispatch(c *gin.Context) {
	report, err := h.dispatch.RunPending(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}
