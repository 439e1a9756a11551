package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations to an open database.
type Migrator struct {
	m   *migrate.Migrate
	src source.Driver
}

// NewMigrator prepares a migrator for conn. Closing the Migrator leaves conn open.
func NewMigrator(conn *sql.DB) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{m: m, src: src}, nil
}

// Up applies every pending migration. Being already current is not an error.
func (mg *Migrator) Up() error {
	return ignoreNoChange(mg.m.Up())
}

// Down reverts every applied migration.
func (mg *Migrator) Down() error {
	return ignoreNoChange(mg.m.Down())
}

// Steps moves n migrations forward, or backward when n is negative.
func (mg *Migrator) Steps(n int) error {
	return ignoreNoChange(mg.m.Steps(n))
}

// Version returns the applied schema version. ok is false on a fresh database.
func (mg *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

// Close releases the migration source. The database driver is not closed
// because it shares the caller's connection.
func (mg *Migrator) Close() error {
	return mg.src.Close()
}

// Migrate brings the schema on conn up to date.
func Migrate(conn *sql.DB) error {
	mg, err := NewMigrator(conn)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
