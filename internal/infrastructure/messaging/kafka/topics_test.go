package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/testutil"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

type mockKafkaConn struct {
	created   []kafka.TopicConfig
	createErr error
	existing  map[string]bool
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		if m.existing[t] {
			out = append(out, kafka.Partition{Topic: t})
		}
	}
	return out, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func TestDefaultTopics_FollowConfig(t *testing.T) {
	cfg := config.KafkaConfig{
		InboundTopic:    TopicChatInbound,
		IngestedTopic:   TopicNoticeIngested,
		OutcomeTopic:    TopicDispatchOutcome,
		DeadLetterTopic: TopicDeadLetterInbound,
	}
	var names []string
	for _, tc := range DefaultTopics(cfg) {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"chat.inbound", "notice.ingested", "dispatch.outcome", "dead_letter.inbound"}, names)
}

func TestEnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	err := m.EnsureTopics(context.Background(), []common.TopicConfig{
		{Name: "chat.inbound", NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 1000},
	})
	require.NoError(t, err)
	require.Len(t, conn.created, 1)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
	assert.Equal(t, "1000", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestCreateTopic_ExistingIsNotAnError(t *testing.T) {
	conn := &mockKafkaConn{createErr: errors.New("exists"), existing: map[string]bool{"chat.inbound": true}}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	assert.NoError(t, m.CreateTopic(context.Background(), common.TopicConfig{Name: "chat.inbound", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), common.TopicConfig{Name: "other", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), common.TopicConfig{Name: "x"}))
}
