package db

import (
	"embed"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/epl-xg-merge/internal/debug"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus is the schema version after a migration command
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrator applies the embedded schema migrations
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator binds the embedded migrations to an open connection.
func NewMigrator(conn *Connection) (*Migrator, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "load embedded migrations")
	}

	driver, err := postgres.WithInstance(conn.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, "create migrator")
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up(localDebug bool) (MigrationStatus, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	return mg.finish(mg.m.Up(), "apply migrations")
}

// Down rolls back the given number of migrations
func (mg *Migrator) Down(localDebug bool, steps int) (MigrationStatus, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if steps <= 0 {
		return MigrationStatus{}, errors.Newf("down steps must be > 0, got %d", steps)
	}
	return mg.finish(mg.m.Steps(-steps), "roll back migrations")
}

// Version reports the current schema version; zero when nothing was applied
func (mg *Migrator) Version() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, errors.Wrap(err, "read schema version")
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// Close releases the migration source and the database driver, which may close
// the connection handed to NewMigrator.
func (mg *Migrator) Close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		debug.Logger().WithError(srcErr).Warn("Closing migration source")
	}
	if dbErr != nil {
		debug.Logger().WithError(dbErr).Warn("Closing migration database")
	}
}

func (mg *Migrator) finish(err error, action string) (MigrationStatus, error) {
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed, err = false, nil
	}
	if err != nil {
		return MigrationStatus{}, errors.Wrap(err, action)
	}

	status, err := mg.Version()
	status.Changed = changed
	return status, err
}
