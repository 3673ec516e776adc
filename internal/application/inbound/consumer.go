package inbound

import (
	"context"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

// ConsumeMessage handles one event queued by the webhook. It satisfies
// common.MessageHandler. Undecodable messages are returned as errors so the
// consumer dead-letters them; routing outcomes never are, since a retry would
// only hit the duplicate guard.
func (r *Router) ConsumeMessage(ctx context.Context, msg *common.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInboundPayloadInvalid, "invalid inbound envelope")
	}
	if env.EventType != kafka.EventChatInbound {
		r.logger.Warn("Skipping unexpected event type on inbound topic",
			logging.String("event_type", env.EventType),
			logging.String("event_id", env.EventID))
		return nil
	}

	var ev Event
	if err := env.DecodePayload(&ev); err != nil {
		return errors.Wrap(err, errors.ErrCodeInboundPayloadInvalid, "invalid inbound event")
	}
	res := r.Handle(ctx, ev)
	r.logger.Debug("Queued inbound event handled",
		logging.String("event_id", env.EventID),
		logging.String("action", string(res.Action)),
		logging.Int64("offset", msg.Offset))
	return nil
}

var _ common.MessageHandler = (*Router)(nil).ConsumeMessage
