package cli

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/redis"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/source"
	"github.com/turtacn/NoticeFlow/internal/testutil"
)

func TestNewApp_RejectsUnknownTimezone(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Ingestion.Timezone = "Mars/Olympus_Mons"

	_, err := NewApp(cfg, testutil.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus_Mons")
}

func TestApp_CloseRunsInReverseOrder(t *testing.T) {
	log := testutil.NewMockLogger()
	var order []string
	app := &App{Logger: log}
	app.closers = []func() error{
		func() error { order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return stderrors.New("already closed") },
		func() error { order = append(order, "kafka"); return nil },
	}

	app.Close()
	app.Close()

	assert.Equal(t, []string{"kafka", "redis", "db"}, order)
	assert.Equal(t, 1, log.CountContaining("warn", "Failed to close resource"))
}

func TestApp_HealthCheckers(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	log := testutil.NewMockLogger()
	app := &App{Logger: log, DB: postgres.NewConnectionWithDB(db, log)}
	checkers := app.HealthCheckers()
	require.Len(t, checkers, 1)
	assert.Equal(t, "postgres", checkers[0].Name())
	assert.NoError(t, checkers[0].Check(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApp_BuildSource(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	app := &App{Config: cfg, Logger: testutil.NewMockLogger()}

	src, bypass, err := app.buildSource()
	require.NoError(t, err)
	assert.False(t, bypass)
	assert.IsType(t, &source.HTTPSource{}, src)

	cfg.Source.Mode = "replay"
	_, _, err = app.buildSource()
	assert.Error(t, err)
}

func TestEvery_RunsImmediatelyThenOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- every(ctx, 5*time.Millisecond, true, func(context.Context) {
			calls++
			if calls == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("every did not stop after cancel")
	}
	assert.GreaterOrEqual(t, calls, 3)
}

func TestEvery_ZeroIntervalIsDisabled(t *testing.T) {
	called := false
	err := every(context.Background(), 0, true, func(context.Context) { called = true })
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestFlushRecipientCache_Disabled(t *testing.T) {
	res, err := flushRecipientCache(context.Background(), nil, []string{"5531"})
	require.NoError(t, err)
	assert.False(t, res.Enabled)
	assert.Contains(t, res.String(), "disabled")
}

func TestFlushRecipientCache_DropsActiveListAndPhones(t *testing.T) {
	db, mock := redismock.NewClientMock()
	log := testutil.NewMockLogger()
	client := redis.NewClientWithRDB(db, "nf:", log)
	cached := redis.NewCachedRecipients(nil, redis.NewRedisCache(client, log, time.Minute), time.Minute)

	mock.ExpectDel("nf:cache:recipients:active", "nf:cache:recipients:phone:5531", "nf:cache:recipients:phone:5539").SetVal(3)

	res, err := flushRecipientCache(context.Background(), cached, []string{"5531", "5539"})
	require.NoError(t, err)
	assert.True(t, res.Enabled)
	assert.Contains(t, res.String(), "2 phone lookups")
	assert.NoError(t, mock.ExpectationsWereMet())
}
