package notice

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessed, true},
		{StatusProcessed, StatusNotified, true},
		{StatusPending, StatusNotified, false},
		{StatusNotified, StatusPending, false},
		{StatusNotified, StatusProcessed, false},
		{StatusProcessed, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestNotification_Transition(t *testing.T) {
	n := &Notification{ExternalID: "42", Status: StatusPending}

	err := n.Transition(StatusNotified)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidStatusChange))
	assert.Equal(t, StatusPending, n.Status)

	require.NoError(t, n.Transition(StatusProcessed))
	require.NoError(t, n.Transition(StatusNotified))
	assert.Error(t, n.Transition(StatusProcessed))
}

func TestExecutionLog_Finish(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	l := &ExecutionLog{Status: RunStarted}
	l.Finish(at, nil)
	assert.Equal(t, RunSuccess, l.Status)
	require.NotNil(t, l.FinishedAt)
	assert.Equal(t, at, *l.FinishedAt)

	l = &ExecutionLog{Status: RunStarted, Failures: 1}
	l.Finish(at, nil)
	assert.Equal(t, RunPartial, l.Status)

	l = &ExecutionLog{Status: RunStarted, Failures: 1}
	l.Finish(at, errors.New("db down"))
	assert.Equal(t, RunFailed, l.Status)
	assert.Equal(t, "db down", l.Error)
}

func TestExtractionOutcome_Result(t *testing.T) {
	usage := ExtractionUsage{Model: "m", PromptTokens: 10}

	r, _, ok := Extracted(ExtractionResult{ActType: "Intimação"}, usage).Result()
	assert.True(t, ok)
	assert.Equal(t, "Intimação", r.ActType)

	o := ExtractionFailed("not json", "oops", usage)
	_, f, ok := o.Result()
	assert.False(t, ok)
	assert.Equal(t, "not json", f.Reason)
	assert.Equal(t, "oops", f.Raw)
	assert.Equal(t, 10, o.Usage.PromptTokens)

	_, f, ok = ExtractionOutcome{}.Result()
	assert.False(t, ok)
	assert.NotEmpty(t, f.Reason)
}

func TestExtractionResult_HasAppearance(t *testing.T) {
	d := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ExtractionResult{AppearanceType: AppearanceHearing, AppearanceDate: &d}.HasAppearance())
	assert.False(t, ExtractionResult{AppearanceType: AppearanceHearing}.HasAppearance())
	assert.False(t, ExtractionResult{AppearanceType: "OTHER", AppearanceDate: &d}.HasAppearance())
	assert.False(t, ExtractionResult{AppearanceDate: &d}.HasAppearance())
}
