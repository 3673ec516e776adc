package inbound

import (
	"context"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

func (s *RouterTestSuite) queued(eventType string, payload interface{}) *common.Message {
	env, err := kafka.NewEventEnvelope(eventType, "test", payload)
	s.Require().NoError(err)
	pm, err := env.ToMessage(kafka.TopicChatInbound, "k")
	s.Require().NoError(err)
	return &common.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
}

func (s *RouterTestSuite) TestConsumeMessage_RoutesQueuedEvent() {
	r := s.keywordRouter()
	msg := s.queued(kafka.EventChatInbound, textEvent("q-1", "Quais minhas intimações hoje?"))

	s.Require().NoError(r.ConsumeMessage(context.Background(), msg))
	s.Contains(s.onlyReply(), "256927443")

	// Redelivery of the same event is absorbed by the duplicate guard.
	s.Require().NoError(r.ConsumeMessage(context.Background(), msg))
	s.Len(s.replier.replies, 1)
}

func (s *RouterTestSuite) TestConsumeMessage_InvalidEnvelope() {
	err := s.keywordRouter().ConsumeMessage(context.Background(), &common.Message{Value: []byte("not json")})
	s.True(errors.IsCode(err, errors.ErrCodeInboundPayloadInvalid))
	s.Empty(s.replier.replies)
}

func (s *RouterTestSuite) TestConsumeMessage_InvalidPayload() {
	msg := s.queued(kafka.EventChatInbound, map[string]interface{}{"key": "not an object"})

	err := s.keywordRouter().ConsumeMessage(context.Background(), msg)
	s.True(errors.IsCode(err, errors.ErrCodeInboundPayloadInvalid))
}

func (s *RouterTestSuite) TestConsumeMessage_SkipsOtherEventTypes() {
	msg := s.queued(kafka.EventNoticeIngested, kafka.NoticeIngestedPayload{ExternalID: "1"})

	s.NoError(s.keywordRouter().ConsumeMessage(context.Background(), msg))
	s.Empty(s.replier.replies)
	s.True(s.logger.HasMessage("warn", "Skipping unexpected event type on inbound topic"))
}
