package pgstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateResult reports the schema version after Migrate.
type MigrateResult struct {
	Version uint
	Changed bool
}

// Migrate applies every pending up migration to the database at databaseURL.
func Migrate(databaseURL string) (result MigrateResult, err error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return MigrateResult{}, fmt.Errorf("open migration source: %w", err)
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return MigrateResult{}, fmt.Errorf("ping migration connection: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return MigrateResult{}, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		sourceErr, databaseErr := migrator.Close()
		if err == nil {
			err = errors.Join(sourceErr, databaseErr)
		}
	}()

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return MigrateResult{}, fmt.Errorf("apply migrations: %w", upErr)
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return MigrateResult{}, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return MigrateResult{}, fmt.Errorf("migration version %d is dirty", version)
	}
	return MigrateResult{Version: version, Changed: upErr == nil}, nil
}
