package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

func stubOpen(t *testing.T, db *sql.DB, err error) *string {
	t.Helper()
	original := sqlOpen
	t.Cleanup(func() { sqlOpen = original })

	var gotDSN string
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, driverName, driver)
		gotDSN = dsn
		return db, err
	}
	return &gotDSN
}

func TestNewConnection_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	dsn := stubOpen(t, db, nil)
	mock.ExpectPing()

	cfg := config.DatabaseConfig{Host: "localhost", Port: 5432, User: "nf", Password: "pw", DBName: "noticeflow", SSLMode: "disable"}
	conn, err := NewConnection(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, db, conn.DB())
	assert.Equal(t, "postgres://nf:pw@localhost:5432/noticeflow?sslmode=disable", *dsn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	stubOpen(t, db, nil)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	conn, err := NewConnection(config.DatabaseConfig{Host: "localhost"}, logging.NewNopLogger())
	assert.Nil(t, conn)

	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, pkgerrors.ErrCodeDatabaseError, appErr.Code)
	assert.Equal(t, "database connection failed", appErr.Message)
	assert.Contains(t, appErr.Cause.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_OpenFailure(t *testing.T) {
	stubOpen(t, nil, errors.New("open failed"))

	conn, err := NewConnection(config.DatabaseConfig{}, logging.NewNopLogger())
	assert.Nil(t, conn)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestConnection_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	conn := NewConnectionWithDB(db, logging.NewNopLogger())

	mock.ExpectPing()
	assert.NoError(t, conn.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("timeout"))
	assert.Error(t, conn.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := NewConnectionWithDB(db, logging.NewNopLogger())
	mock.ExpectClose()

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cases").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conn := NewConnectionWithDB(db, logging.NewNopLogger())
	err = conn.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO cases (id) VALUES (1)")
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	conn := NewConnectionWithDB(db, logging.NewNopLogger())
	want := errors.New("boom")
	err = conn.WithTransaction(context.Background(), func(*sql.Tx) error { return want })
	assert.ErrorIs(t, err, want)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	conn := NewConnectionWithDB(db, logging.NewNopLogger())
	assert.Panics(t, func() {
		_ = conn.WithTransaction(context.Background(), func(*sql.Tx) error { panic("bad") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	conn := NewConnectionWithDB(db, logging.NewNopLogger())
	err = conn.WithTransaction(context.Background(), func(*sql.Tx) error { return nil })
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestIsPgCode(t *testing.T) {
	unique := &pgconn.PgError{Code: UniqueViolation}
	assert.True(t, IsPgCode(unique, UniqueViolation))
	assert.True(t, IsPgCode(fmt.Errorf("insert: %w", unique), UniqueViolation))
	assert.False(t, IsPgCode(unique, ForeignKeyViolation))
	assert.False(t, IsPgCode(errors.New("plain"), UniqueViolation))
	assert.False(t, IsPgCode(nil, UniqueViolation))
}

func TestEmbeddedMigrations(t *testing.T) {
	up, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, up)
	assert.Len(t, down, len(up))

	body, err := fs.ReadFile(migrationFS, "migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "UNIQUE (external_id, recipient_id)")
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	m := NewMigrator("postgres://localhost/none", "", nil)
	_, err := m.Down(0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}
