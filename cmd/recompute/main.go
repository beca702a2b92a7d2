// Package main provides the bulk recompute worker.
// It refreshes rollups, productivity scores and adoption stages for every
// wallet of the given projects, once or daily at 00:00 UTC.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wallet-insights/internal/circuitbreaker"
	"github.com/wallet-insights/internal/config"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/service"
	"github.com/wallet-insights/internal/storage"
)

func main() {
	var (
		projects = flag.String("project", "", "Comma-separated project ids to recompute")
		daily    = flag.Bool("daily", false, "Keep running and recompute daily at 00:00 UTC")
	)
	flag.Parse()

	projectIDs := splitProjects(*projects)
	if len(projectIDs) == 0 {
		log.Fatal("-project is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer logger.Sync()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load thresholds")
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	scoringService := service.NewScoringService(
		storage.NewWalletRepository(postgres),
		storage.NewTransactionRepository(clickhouse),
		storage.NewScoreRepository(postgres),
		storage.NewStageRepository(postgres),
		storage.NewViewCache(redis, cfg.Cache.TTL, cfg.Cache.StaleRetention),
		thresholds.Scoring,
		cfg.Batch,
		circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("transaction-store")),
		retry.DefaultConfig(),
	)

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	if !*daily {
		if failed := recomputeAll(ctx, scoringService, projectIDs, logger); failed > 0 {
			logger.WithField("failedProjects", failed).Error("Recompute finished with failures")
			os.Exit(1)
		}
		return
	}

	go runScheduler(ctx, scoringService, projectIDs, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down recompute worker...")
	cancel()
	logger.Info("Worker stopped")
}

func splitProjects(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// recomputeAll recomputes each project in turn and returns how many had failures
func recomputeAll(ctx context.Context, scoringService *service.ScoringService, projectIDs []string, logger *logging.Logger) int {
	failed := 0
	for _, projectID := range projectIDs {
		plog := logger.WithField("projectId", projectID)
		result, err := scoringService.RecomputeProject(ctx, projectID)
		switch {
		case err == nil:
			plog.WithField("wallets", result.Total).Info("Project recomputed")
		case apperrors.IsPartialBatchFailure(err):
			failed++
			for _, o := range result.Outcomes {
				if !o.Succeeded {
					plog.WithFields(map[string]interface{}{
						"walletId": o.WalletID,
						"error":    o.Error,
					}).Warn("Wallet recompute failed")
				}
			}
		default:
			failed++
			plog.WithError(err).Error("Project recompute failed")
		}
	}
	return failed
}

// runScheduler recomputes the projects at 00:00 UTC daily
func runScheduler(ctx context.Context, scoringService *service.ScoringService, projectIDs []string, logger *logging.Logger) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
		wait := next.Sub(now)

		logger.WithFields(map[string]interface{}{
			"nextRun": next.Format(time.RFC3339),
			"wait":    wait.String(),
		}).Info("Waiting for next recompute")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			recomputeAll(ctx, scoringService, projectIDs, logger)
		}
	}
}
