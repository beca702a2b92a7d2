// Package main provides the API server entry point for the wallet analytics engine.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wallet-insights/internal/api"
	"github.com/wallet-insights/internal/circuitbreaker"
	"github.com/wallet-insights/internal/config"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/service"
	"github.com/wallet-insights/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer logger.Sync()

	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load thresholds")
	}

	logger.Info("Connecting to databases...")

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

	logger.Info("Database connections established")

	// Repositories
	walletRepo := storage.NewWalletRepository(postgres)
	scoreRepo := storage.NewScoreRepository(postgres)
	stageRepo := storage.NewStageRepository(postgres)
	grantRepo := storage.NewGrantRepository(postgres)
	txRepo := storage.NewTransactionRepository(clickhouse)
	viewCache := storage.NewViewCache(redis, cfg.Cache.TTL, cfg.Cache.StaleRetention)

	payments, err := service.NewFixedPriceVerifier(cfg.Monetization.AccessPrice)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create payment verifier")
	}

	// Every service reading the transaction store shares one breaker
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("transaction-store"))
	retryCfg := retry.DefaultConfig()

	flowService := service.NewFlowService(walletRepo, txRepo, thresholds.Flow, breaker, retryCfg)
	scoringService := service.NewScoringService(
		walletRepo,
		txRepo,
		scoreRepo,
		stageRepo,
		viewCache,
		thresholds.Scoring,
		cfg.Batch,
		breaker,
		retryCfg,
	)
	privacyService := service.NewPrivacyService(
		walletRepo,
		grantRepo,
		stageRepo,
		payments,
		flowService,
		scoringService,
		viewCache,
		cfg.Monetization,
		retryCfg,
	)
	aggregationService := service.NewAggregationService(
		walletRepo,
		txRepo,
		scoreRepo,
		stageRepo,
		viewCache,
		thresholds.Scoring,
		breaker,
		retryCfg,
	)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, logger, flowService, scoringService, privacyService, aggregationService)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
