package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/wallet-insights/internal/logging"
)

// MigrationStatus is the schema version recorded by golang-migrate
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// PostgresMigrator applies the relational schema (wallets, scores, stages,
// grants, earnings) with golang-migrate
type PostgresMigrator struct {
	m *migrate.Migrate
}

// migrateLogger routes golang-migrate output through the structured logger
type migrateLogger struct {
	logger *logging.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}

// MigrationSourceURL resolves a migrations directory into a file:// source URL
func MigrationSourceURL(migrationsPath string) (string, error) {
	abs, err := filepath.Abs(migrationsPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("migrations directory not found: %s", migrationsPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("migrations path is not a directory: %s", migrationsPath)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// NewPostgresMigrator opens a migrator for databaseURL over the SQL files in migrationsPath
func NewPostgresMigrator(ctx context.Context, databaseURL, migrationsPath string) (*PostgresMigrator, error) {
	source, err := MigrationSourceURL(migrationsPath)
	if err != nil {
		return nil, err
	}
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger: logging.FromContext(ctx)}
	return &PostgresMigrator{m: m}, nil
}

// Close releases the source and database handles
func (p *PostgresMigrator) Close() error {
	srcErr, dbErr := p.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies every pending migration. No pending change is not an error.
func (p *PostgresMigrator) Up() (MigrationStatus, error) {
	if err := p.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to run migrations: %w", err)
	}
	return p.Status()
}

// Down rolls back the last applied migration
func (p *PostgresMigrator) Down() (MigrationStatus, error) {
	if err := p.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to rollback migration: %w", err)
	}
	return p.Status()
}

// Status reports the current version. A database never migrated reads as version 0.
func (p *PostgresMigrator) Status() (MigrationStatus, error) {
	version, dirty, err := p.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// RunMigrations applies every pending Postgres migration
func RunMigrations(ctx context.Context, databaseURL, migrationsPath string) (MigrationStatus, error) {
	migrator, err := NewPostgresMigrator(ctx, databaseURL, migrationsPath)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to close migrator")
		}
	}()
	return migrator.Up()
}
