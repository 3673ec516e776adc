package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationState is the schema version recorded by golang-migrate.
type MigrationState struct {
	Version uint
	Dirty   bool
}

// Migrator applies the schema migrations. Migrations are read from the
// embedded set unless a source URL (e.g. "file://./migrations") is given.
type Migrator struct {
	dsn    string
	source string
	log    logging.Logger
}

// NewMigrator returns a Migrator for the database at dsn.
func NewMigrator(dsn, source string, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{dsn: dsn, source: source, log: log}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	if m.source != "" {
		mg, err := migrate.New(m.source, m.dsn)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migrate instance")
		}
		return mg, nil
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to read embedded migrations")
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() (MigrationState, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationState{}, err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationState{}, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to run migrations")
	}
	state, err := version(mg)
	if err != nil {
		return MigrationState{}, err
	}
	m.log.Info("Database migrations completed",
		logging.Int64("version", int64(state.Version)),
		logging.Bool("dirty", state.Dirty),
	)
	return state, nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) (MigrationState, error) {
	if steps <= 0 {
		return MigrationState{}, pkgerrors.Newf(pkgerrors.ErrCodeBadRequest, "steps must be greater than 0, got %d", steps)
	}
	mg, err := m.open()
	if err != nil {
		return MigrationState{}, err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return MigrationState{}, pkgerrors.New(pkgerrors.ErrCodeConflict, "no migrations to roll back")
		}
		return MigrationState{}, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, fmt.Sprintf("failed to rollback %d step(s)", steps))
	}
	state, err := version(mg)
	if err != nil {
		return MigrationState{}, err
	}
	m.log.Info("Database migrations rolled back",
		logging.Int("steps", steps),
		logging.Int64("version", int64(state.Version)),
	)
	return state, nil
}

// Status reports the current version without changing anything.
func (m *Migrator) Status() (MigrationState, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationState{}, err
	}
	defer mg.Close()
	return version(mg)
}

func version(mg *migrate.Migrate) (MigrationState, error) {
	v, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationState{}, nil
		}
		return MigrationState{}, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return MigrationState{Version: v, Dirty: dirty}, nil
}
