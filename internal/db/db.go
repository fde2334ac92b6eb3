// Package db opens the gorm connection and applies the schema.
package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/briefly/internal/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects the database to connect to.
type Options struct {
	Driver string
	DSN    string
	Debug  bool
	// Retries is the number of connection attempts, 2 seconds apart.
	Retries int
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Connect opens the database, retrying while it comes up.
func Connect(opts Options, l logging.Logger) (*gorm.DB, error) {
	l = logging.OrNop(l)
	dsn := NormalizeDSN(opts.DSN)
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is empty")
	}
	dial, err := dialector(opts.Driver, dsn)
	if err != nil {
		return nil, err
	}
	logLevel := logger.Silent
	if opts.Debug {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 1
	}

	var conn *gorm.DB
	for i := 0; i < retries; i++ {
		conn, err = gorm.Open(dial, cfg)
		if err == nil {
			break
		}
		l.Warnw("retrying database connection", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", retries, err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	l.Infow("database connected", "driver", opts.Driver, "dsn", MaskDSN(dsn))
	return conn, nil
}
