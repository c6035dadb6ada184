package testutil

import (
	"context"
	"testing"

	"github.com/ethaccount/walletcore/src/utils"
	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func migrationSource(t *testing.T) string {
	t.Helper()
	source, err := utils.MigrationsSource()
	if err != nil {
		t.Fatalf("failed to locate migrations: %v", err)
	}
	return source
}

// SetupTestDB connects to TEST_DB_URL and migrates it up. The test is
// skipped when no database is configured.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := GetEnv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	migration, err := migrate.New(migrationSource(t), dsn)
	if err != nil {
		t.Fatalf("failed to create migrate: %v", err)
	}
	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to run migration up: %v", err)
	}
	return db
}

func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	migration, err := migrate.New(migrationSource(t), GetEnv("TEST_DB_URL"))
	if err != nil {
		t.Fatalf("failed to create migrate: %v", err)
	}
	if err := migration.Down(); err != nil && err != migrate.ErrNoChange {
		t.Logf("Warning: failed to run migration down: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// SetupTestRedis connects to TEST_REDIS_URL, skipping the test when unset
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := GetEnv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("connection to redis failed: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}
