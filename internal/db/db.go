package db

import (
	"context"
	"errors"
	"log"
	"time"

	"doratrack/internal/env"
	"doratrack/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Ctx = context.Background()
var RDB *redis.Client
var Conn *gorm.DB

// InitDB opens the metric store and runs the idempotent schema check.
// The test profile uses an in-memory SQLite database so the full stack
// can run without external services.
func InitDB(deployment string) error {
	var (
		gdb *gorm.DB
		err error
	)

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if deployment == "test" {
		gdb, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
	} else {
		if env.DATABASE_URL == "" {
			return errors.New("DATABASE_URL is not configured")
		}
		gdb, err = gorm.Open(postgres.Open(env.DATABASE_URL), cfg)
	}
	if err != nil {
		return err
	}

	if err := ensureSchema(gdb); err != nil {
		return err
	}

	Conn = gdb

	return nil
}

// ensureSchema creates any missing tables. Existing tables are never
// dropped; re-running against a populated store is a no-op.
func ensureSchema(gdb *gorm.DB) error {
	entities := []any{
		&models.Deployment{},
		&models.PullRequest{},
		&models.Incident{},
		&models.DeploymentPR{},
		&models.DailyMetric{},
		&models.Event{},
	}

	migrator := gdb.Migrator()
	for _, entity := range entities {
		if migrator.HasTable(entity) {
			continue
		}
		if err := migrator.AutoMigrate(entity); err != nil {
			return err
		}
	}

	return nil
}

func InitCache() error {
	var err error

	RDB = redis.NewClient(&redis.Options{
		Addr:     env.REDIS_ADDR,
		Password: "",
		DB:       15,
	})

	err = RDB.Ping(Ctx).Err()
	if err != nil {
		log.Print("COULD NOT CONNECT TO REDIS")
		RDB = nil
		return err
	}

	return nil
}

func CacheSetBytesTTL(key string, value []byte, ttl time.Duration) error {
	return RDB.Set(Ctx, key, value, ttl).Err()
}

func CacheGetBytes(key string) ([]byte, error) {
	return RDB.Get(Ctx, key).Bytes()
}

func CacheDel(key string) error {
	_, err := RDB.Del(Ctx, key).Result()

	return err
}
