package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/calebmartin/corkboard/internal/config"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies pending goose migrations. Runs over database/sql (lib/pq)
// since goose does not speak pgx pools.
func Migrate(cfg *config.DatabaseConfig, logger *slog.Logger) error {
	return MigrateDSN(cfg.DSN(), logger)
}

// MigrateDSN applies migrations against a raw connection string. The
// integration harness uses this with testcontainer DSNs.
func MigrateDSN(dsn string, logger *slog.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("unable to open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("unable to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database migrations applied")
	return nil
}
