package logging

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/NoticeFlow/pkg/errors"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_UnopenablePath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/x/y.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestZapLogger_LevelsAndFields(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Debug("d")
	l.Info("i", String(FieldRecipientID, "r-1"), Int("records", 3))
	l.Warn("w", Bool("bypass_window", true))
	l.Error("e", Err(stderrors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	ctx := entries[1].ContextMap()
	assert.Equal(t, "r-1", ctx[FieldRecipientID])
	assert.Equal(t, int64(3), ctx["records"])
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)
	l.With(String(FieldExecutionID, "exec-1")).Named("ingestion").Info("run started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ingestion", entries[0].LoggerName)
	assert.Equal(t, "exec-1", entries[0].ContextMap()[FieldExecutionID])
}

func TestDate_FormatsCivilDay(t *testing.T) {
	f := Date("due_date", time.Date(2025, 6, 12, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "2025-06-12", f.Value)
}

func TestErrorFields_AppErrorCarriesCode(t *testing.T) {
	fields := ErrorFields(errors.New(errors.ErrCodeSourceTimeout, "fetch timed out"))
	require.Len(t, fields, 2)
	assert.Equal(t, FieldErrorCode, fields[1].Key)
	assert.Equal(t, "SRC_002", fields[1].Value)

	assert.Len(t, ErrorFields(stderrors.New("plain")), 1)
	assert.Nil(t, ErrorFields(nil))
}

func TestErr_Nil(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l := NewLoggerFromCore(zapcore.NewNopCore())
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}

func TestToZapFields_Types(t *testing.T) {
	now := time.Now()
	out := toZapFields([]Field{
		Strings("ids", []string{"a"}),
		Time("at", now),
		Duration("took", time.Second),
		Float64("score", 0.9),
	})
	require.Len(t, out, 4)
	assert.Equal(t, zap.Time("at", now).Type, out[1].Type)
	assert.Equal(t, zapcore.DurationType, out[2].Type)
}
