package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"collections-backend/db"
	"collections-backend/services"
	"collections-backend/strategy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	userService      *services.UserService
	groupService     *services.GroupService
	strategyService  *services.StrategyService
	documentService  *services.DocumentService
	analyticsService *services.AnalyticsService
)

func initServices() {
	database, err := db.InitDB()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to DB: %v", err))
	}

	redisClient, err := db.InitRedis()
	if err != nil {
		log.Printf("Redis unavailable, continuing without cache: %v", err)
		redisClient = nil
	}

	wireServices(database, redisClient)
}

func wireServices(database *gorm.DB, redisClient *redis.Client) {
	userService = &services.UserService{DB: database}
	groupService = &services.GroupService{DB: database}
	strategyService = &services.StrategyService{DB: database, AI: strategy.NewClient()}
	documentService = &services.DocumentService{DB: database}
	analyticsService = &services.AnalyticsService{DB: database, Redis: redisClient}
}

func apiGatewayHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	pp := pathParts(req.Path)

	if len(pp) == 0 {
		if req.HTTPMethod != http.MethodGet {
			return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
		}
		return jsonResponse(http.StatusOK, map[string]string{"message": "Collections strategy backend is running"})
	}

	switch pp[0] {
	case "ingestion":
		return routeIngestion(req, pp)
	case "users":
		return routeUsers(ctx, req, pp)
	case "strategies":
		return routeStrategies(ctx, req, pp)
	}

	return errorResponse(http.StatusNotFound, "Not Found")
}

func main() {
	initServices()
	lambda.Start(apiGatewayHandler)
}
