package main

import (
	"context"
	"log"

	"collections-backend/db"
	"collections-backend/services"

	"github.com/aws/aws-lambda-go/lambda"
)

// Scheduled cache refresh: recomputes the analytics snapshot into Redis so
// dashboard reads stay warm between uploads.
func handler(ctx context.Context) error {
	database, err := db.InitDB()
	if err != nil {
		return err
	}

	redisClient, err := db.InitRedis()
	if err != nil {
		return err
	}
	if redisClient == nil {
		log.Println("no Redis configured, nothing to refresh")
		return nil
	}

	analytics := &services.AnalyticsService{DB: database, Redis: redisClient}
	_, err = analytics.Refresh(ctx)
	return err
}

func main() {
	lambda.Start(handler)
}
