package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wallet-insights/internal/config"
)

const (
	postgresMigrations   = "../../migrations/postgres"
	clickhouseMigrations = "../../migrations/clickhouse"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// skipIntegration skips tests that need a live database in -short mode
func skipIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       "wallet_insights",
		User:           "insights",
		Password:       envOr("POSTGRES_PASSWORD", "insights_dev_password"),
		MaxConnections: 10,
	}
}

// openTestPostgres connects and migrates a local Postgres, skipping when unavailable
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	skipIntegration(t)

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := RunMigrations(testContext(t), cfg.URL(), postgresMigrations); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}

// openTestClickHouse connects and migrates a local ClickHouse, skipping when unavailable
func openTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	skipIntegration(t)

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     envOr("CLICKHOUSE_HOST", "localhost"),
		Port:     envOr("CLICKHOUSE_PORT", "9000"),
		Database: "wallet_insights",
		User:     "default",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := RunClickHouseMigrations(testContext(t), db, clickhouseMigrations); err != nil {
		t.Fatalf("RunClickHouseMigrations() error = %v", err)
	}
	return db
}

func newMiniRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCacheFromClient(client), mr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestViewCache(t *testing.T) (*ViewCache, *fakeClock) {
	t.Helper()
	redisCache, _ := newMiniRedisCache(t)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewViewCache(redisCache, 5*time.Minute, time.Hour)
	cache.now = clock.Now
	return cache, clock
}
