package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration of the dialect on dsn.
// A separate connection is used because the migrate driver closes it.
func RunMigrations(dialect Dialect, dsn string) error {
	migrateDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migrationDriver(dialect, migrateDB)
	if err != nil {
		return err
	}

	d, err := iofs.New(migrationsFS, "migrations/"+dialect.String())
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, dialect.String(), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// MigrationVersion reports the applied schema version.
func MigrationVersion(dialect Dialect, dsn string) (uint, bool, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return 0, false, fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := migrationDriver(dialect, db)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := driver.Version()
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	if version < 0 {
		return 0, false, nil
	}
	return uint(version), dirty, nil
}

func migrationDriver(dialect Dialect, db *sql.DB) (database.Driver, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case Postgres:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s driver: %w", dialect, err)
	}
	return driver, nil
}
