package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// VersionTable stores the applied schema version.
const VersionTable = "schema_version"

// Migrate applies every pending migration.
func Migrate(ctx context.Context, logger *zerolog.Logger, cfg *config.Config) error {
	return MigrateTo(ctx, logger, cfg, -1)
}

// MigrateTo moves the schema to target. A negative target means the latest version.
func MigrateTo(ctx context.Context, logger *zerolog.Logger, cfg *config.Config, target int32) error {
	return MigrateDSN(ctx, logger, cfg.Database.DSN(), target)
}

// MigrateDSN is MigrateTo for an explicit connection string.
func MigrateDSN(ctx context.Context, logger *zerolog.Logger, dsn string, target int32) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting for migrations: %w", err)
	}
	defer conn.Close(ctx)

	m, err := newMigrator(ctx, conn)
	if err != nil {
		return err
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}

	latest := int32(len(m.Migrations))
	if target < 0 || target > latest {
		target = latest
	}

	if err := m.MigrateTo(ctx, target); err != nil {
		return fmt.Errorf("migrating database schema to %d: %w", target, err)
	}

	if from == target {
		logger.Info().Msgf("database schema up to date, version %d", target)
	} else {
		logger.Info().Msgf("migrated database schema, from %d to %d", from, target)
	}
	return nil
}

func newMigrator(ctx context.Context, conn *pgx.Conn) (*tern.Migrator, error) {
	m, err := tern.NewMigrator(ctx, conn, VersionTable)
	if err != nil {
		return nil, fmt.Errorf("constructing database migrator: %w", err)
	}

	subtree, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("retrieving database migrations subtree: %w", err)
	}

	if err := m.LoadMigrations(subtree); err != nil {
		return nil, fmt.Errorf("loading database migrations: %w", err)
	}

	return m, nil
}
