// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wallet-insights/internal/config"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		dir    = flag.String("dir", "migrations", "Root directory holding postgres/ and clickhouse/ migrations")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"db":     *dbType,
		"action": *action,
	})

	switch *dbType {
	case "postgres":
		err = runPostgresMigrations(logger, cfg, *action, *dir+"/postgres")
	case "clickhouse":
		err = runClickHouseMigrations(logger, cfg, *action, *dir+"/clickhouse")
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func runPostgresMigrations(logger *logging.Logger, cfg *config.Config, action, migrationsPath string) error {
	ctx := logging.WithLogger(context.Background(), logger)

	migrator, err := storage.NewPostgresMigrator(ctx, cfg.Database.Postgres.URL(), migrationsPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.WithError(err).Warn("Error closing migrator")
		}
	}()

	var status storage.MigrationStatus
	switch action {
	case "up":
		logger.Info("Running Postgres migrations...")
		status, err = migrator.Up()
	case "down":
		logger.Info("Rolling back Postgres migration...")
		status, err = migrator.Down()
	case "version":
		status, err = migrator.Status()
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"version": status.Version,
		"dirty":   status.Dirty,
	}).Info("Postgres migration version")
	return nil
}

func runClickHouseMigrations(logger *logging.Logger, cfg *config.Config, action, migrationsPath string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", migrationsPath)
	}

	logger.Info("Connecting to ClickHouse...")
	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	ctx := logging.WithLogger(context.Background(), logger)
	applied, err := storage.RunClickHouseMigrations(ctx, db, migrationsPath)
	if err != nil {
		return err
	}

	logger.WithField("files", applied).Info("ClickHouse migrations completed successfully")
	return nil
}
