package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildrenShareSink(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.Named("ingestion").With(logging.String("execution_id", "e-1"))

	child.Warn("fetch failed: timeout")
	child.Named("source").Warn("fetch failed: 500")

	msgs := logger.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ingestion", msgs[0].Logger)
	assert.Equal(t, "ingestion.source", msgs[1].Logger)
	v, _ := msgs[1].Field("execution_id")
	assert.Equal(t, "e-1", v)
	assert.Equal(t, 2, logger.CountContaining("warn", "fetch failed"))
}
