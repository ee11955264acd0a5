package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// Migrate brings the schema of db up to date using the embedded migrations
// for its dialect.
func Migrate(db *sqlx.DB, log *zap.Logger) error {
	driverName := db.DriverName()

	src, err := iofs.New(migrations, "migrations/"+driverName)
	if err != nil {
		return fmt.Errorf("migrate: open source: %w", err)
	}

	var driver database.Driver
	switch driverName {
	case DriverMySQL:
		driver, err = mysql.WithInstance(db.DB, &mysql.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driverName)
	}
	if err != nil {
		return fmt.Errorf("migrate: database instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return fmt.Errorf("migrate: create instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}

	// The mysql driver pins one pooled connection; give it back.  The
	// sqlite driver's Close would close db itself, so it is left open.
	if driverName == DriverMySQL {
		_ = driver.Close()
	}

	version, dirty, _ := m.Version()
	log.Info("database migrated", zap.String("driver", driverName), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
