// Package migrate applies the embedded migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"gatehouse/cmd/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when there is nothing to apply.
var ErrNoChange = migrate.ErrNoChange

// Direction is "up" or "down".
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a CLI direction flag.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("direction must be up or down, got %q", s)
	}
}

// Run applies migrations in dir against dsn. Already being at the target version is not an error.
func Run(dsn string, dir Direction) error {
	if dsn == "" {
		return errors.New("database url is empty; set GATE_DATABASE_URL")
	}
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
