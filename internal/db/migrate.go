package db

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// requiredTables must exist once the schema is applied.
var requiredTables = []string{"users", "clients", "documents", "line_items", "access_attempts", "notifications"}

// Migrate applies the schema. With sqlMigrations the embedded SQL files run
// through golang-migrate (postgres only); otherwise gorm AutoMigrate is used.
func Migrate(conn *gorm.DB, driver, dsn string, sqlMigrations bool) error {
	if sqlMigrations && driver != DriverSQLite {
		if err := RunSQLMigrations(ToURLDSN(NormalizeDSN(dsn))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := conn.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	for _, table := range requiredTables {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the postgres URL.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
