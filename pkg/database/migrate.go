package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies pending schema migrations over a dedicated connection that
// is closed before returning.
func Migrate(cfg config.DatabaseConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: cfg.Name})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, cfg.Name, driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
