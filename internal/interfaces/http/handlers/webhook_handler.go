package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/application/inbound"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// maxWebhookBody bounds the accepted event size.
const maxWebhookBody = 1 << 20

// EventHandler answers one inbound chat event.
type EventHandler interface {
	Handle(ctx context.Context, ev inbound.Event) inbound.RouteResult
}

// EventPublisher hands an event to the broker for asynchronous handling.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// WebhookHandler receives chat gateway events. With a publisher configured
// events are queued on the inbound topic and answered by the worker;
// otherwise they are routed in the request.
type WebhookHandler struct {
	router    EventHandler
	publisher EventPublisher
	topic     string
	logger    logging.Logger
}

// NewWebhookHandler creates a handler that routes events in-process.
func NewWebhookHandler(router EventHandler, logger logging.Logger) *WebhookHandler {
	return &WebhookHandler{router: router, logger: logger}
}

// WithPublisher switches the handler to queue events on topic.
func (h *WebhookHandler) WithPublisher(p EventPublisher, topic string) *WebhookHandler {
	h.publisher = p
	h.topic = topic
	if h.topic == "" {
		h.topic = kafka.TopicChatInbound
	}
	return h
}

// QueuedResponse is returned when an event was handed to the broker.
type QueuedResponse struct {
	Queued  bool   `json:"queued"`
	EventID string `json:"event_id,omitempty"`
}

// Receive handles POST on the webhook path.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeInboundPayloadInvalid, "failed to read event body"))
		return
	}
	ev, err := inbound.DecodeEvent(body)
	if err != nil {
		h.logger.Warn("Rejected malformed webhook event", logging.Err(err), logging.Int("bytes", len(body)))
		respondError(c, err)
		return
	}

	// The reply must go out even if the gateway drops the connection.
	ctx := context.WithoutCancel(c.Request.Context())

	if h.publisher != nil {
		if err := h.publisher.PublishEvent(ctx, h.topic, ev.Key.RemoteJID, kafka.EventChatInbound, ev); err != nil {
			h.logger.Error("Failed to queue inbound event", logging.Err(err), logging.String("event_id", ev.Key.ID))
			respondError(c, errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to queue event"))
			return
		}
		respondOK(c, http.StatusAccepted, QueuedResponse{Queued: true, EventID: ev.Key.ID})
		return
	}

	respondOK(c, http.StatusOK, h.router.Handle(ctx, ev))
}
