package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/testutil"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

// mockKafkaReader serves queued messages, then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error { return nil }

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*common.ProducerMessage
}

func (r *recordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "noticeflow-worker",
		Topics:  []string{TopicChatInbound},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			DeadLetterTopic: TopicDeadLetterInbound,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	cfg := newTestConsumerConfig()
	cfg.Topics = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), nil, nil)
	c.running.Store(true)
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumeLoop_HandlesInOrderAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: TopicChatInbound, Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: TopicChatInbound, Offset: 2, Value: []byte("b")},
	}}
	c := newConsumerWithReader(reader, newTestConsumerConfig(), nil, testutil.NewMockLogger())

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	c.Subscribe(TopicChatInbound, func(ctx context.Context, msg *common.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value))
		if len(seen) == 1 {
			assert.Equal(t, "x", msg.Headers["event_type"])
		}
		if len(seen) == 2 {
			close(done)
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, int64(2), c.metrics.MessagesProcessed.Load())
}

func TestConsumeLoop_UnknownTopicIsCommitted(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: "other", Value: []byte("a")}}}
	log := testutil.NewMockLogger()
	c := newConsumerWithReader(reader, newTestConsumerConfig(), nil, log)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, log.HasMessage("warn", "No handler for topic"))
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), nil, nil)

	attempts := 0
	err := c.processMessage(context.Background(), &common.Message{}, func(ctx context.Context, msg *common.Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestProcessMessage_ExhaustedGoesToDeadLetter(t *testing.T) {
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), dlq, testutil.NewMockLogger())

	attempts := 0
	msg := &common.Message{Topic: TopicChatInbound, Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{}}
	err := c.processMessage(context.Background(), msg, func(ctx context.Context, msg *common.Message) error {
		attempts++
		return errors.New("router down")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, TopicDeadLetterInbound, dlq.msgs[0].Topic)
	assert.Equal(t, TopicChatInbound, dlq.msgs[0].Headers["original_topic"])
	assert.Equal(t, "router down", dlq.msgs[0].Headers["error_message"])
	assert.Empty(t, msg.Headers)
	assert.Equal(t, int64(1), c.metrics.MessagesDeadLettered.Load())
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c := newConsumerWithReader(&mockKafkaReader{}, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &common.Message{}, func(context.Context, *common.Message) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessMessage_ObservesDuration(t *testing.T) {
	m := testutil.NewMetrics(t)
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), nil, nil, WithConsumerMetrics(m.AppMetrics))

	msg := &common.Message{Topic: TopicChatInbound}
	require.NoError(t, c.processMessage(context.Background(), msg, func(context.Context, *common.Message) error { return nil }))

	assert.Contains(t, m.Scrape(), `test_mq_process_duration_seconds_count{topic="`+TopicChatInbound+`"} 1`)
}
