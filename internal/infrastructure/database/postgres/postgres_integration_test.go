//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// startPostgres launches a PostgreSQL 16 container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("noticeflow_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestMigrator_UpDownStatus(t *testing.T) {
	dsn := startPostgres(t)
	m := postgres.NewMigrator(dsn, "", logging.NewNopLogger())

	state, err := m.Up()
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.Version)
	assert.False(t, state.Dirty)

	state, err = m.Up()
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.Version)

	state, err = m.Down(1)
	require.NoError(t, err)
	assert.Equal(t, uint(0), state.Version)

	state, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(0), state.Version)
}

func TestRepositories_PersistIsIdempotent(t *testing.T) {
	dsn := startPostgres(t)
	_, err := postgres.NewMigrator(dsn, "", nil).Up()
	require.NoError(t, err)

	ctx := context.Background()
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	log := logging.NewNopLogger()
	conn := postgres.NewConnectionWithDB(db, log)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = db.ExecContext(ctx,
		`INSERT INTO recipients (id, name, phone, active) VALUES ('8a6b7c1e-0000-4000-8000-000000000001', 'Ana', '5531', TRUE)`)
	require.NoError(t, err)
	recipientID := "8a6b7c1e-0000-4000-8000-000000000001"

	notifications := repositories.NewNotificationRepo(conn, log)
	dispatches := repositories.NewDispatchRepo(conn, log)

	persist := func() error {
		due := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
		return notifications.Persist(ctx,
			&notice.Case{ProcessNumber: "0001234", Jurisdiction: "TRT3", Category: notice.CategoryLabor},
			&notice.Notification{
				ExternalID:       "42",
				RecipientID:      recipientID,
				PublicationDate:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
				DeadlineDays:     8,
				RuleID:           "EXPLICIT_IN_TEXT",
				DueDate:          &due,
				SuggestedActions: []string{"contestar"},
			},
			&notice.Dispatch{Channel: notice.ChannelWhatsApp})
	}

	require.NoError(t, persist())
	err = persist()
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDuplicateNotification))

	seen, err := notifications.Seen(ctx, "42", recipientID)
	require.NoError(t, err)
	assert.True(t, seen)

	views, err := notifications.ListByPublicationDate(ctx, recipientID, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, []string{"contestar"}, views[0].SuggestedActions)

	jobs, err := dispatches.ListSendable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, dispatches.RecordOutcome(ctx, jobs[0].Dispatch.ID, notice.DispatchFailed, "timeout", nil))
	require.NoError(t, dispatches.RecordOutcome(ctx, jobs[0].Dispatch.ID, notice.DispatchFailed, "timeout", nil))
	require.NoError(t, dispatches.RecordOutcome(ctx, jobs[0].Dispatch.ID, notice.DispatchFailed, "timeout", nil))

	jobs, err = dispatches.ListSendable(ctx, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
