package db

import (
	"collections-backend/model"
	"context"
	"fmt"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"log"
	"os"
	"sync"
)

var (
	DB   *gorm.DB
	once sync.Once
)

func InitDB() (*gorm.DB, error) {
	var err error
	once.Do(func() {
		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			host := os.Getenv("DB_HOST")
			user := os.Getenv("DB_USER")
			password := os.Getenv("DB_PASSWORD")
			dbname := os.Getenv("DB_NAME")
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=require", host, user, password, dbname)
		}

		var err error
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		log.Println("Successfully connected to the database")

		err = Migrate(DB)
		if err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		log.Println("Migrated")
	})
	return DB, err
}

// Migrate creates/updates the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Group{},
		&model.User{},
		&model.UserDocument{},
		&model.Strategy{},
	)
}

// InitRedis connects the analytics cache. Returns nil without error when
// REDIS_HOST is not configured; callers treat a nil client as cache-off.
func InitRedis() (*redis.Client, error) {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		log.Println("REDIS_HOST not set, running without cache")
		return nil, nil
	}

	log.Println("Connecting to Redis at:", redisHost)

	client := redis.NewClient(&redis.Options{
		Addr:     redisHost,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if _, err := client.Ping(context.TODO()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Successfully connected to Redis")
	return client, nil
}
