package main

import (
	"context"
	"fmt"
	"os"

	"github.com/studyloop/adaptive-backend/internal/clients/mlservice"
	"github.com/studyloop/adaptive-backend/internal/clients/redis"
	"github.com/studyloop/adaptive-backend/internal/db"
	"github.com/studyloop/adaptive-backend/internal/handlers"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/middleware"
	"github.com/studyloop/adaptive-backend/internal/observability"
	"github.com/studyloop/adaptive-backend/internal/repos"
	"github.com/studyloop/adaptive-backend/internal/server"
	"github.com/studyloop/adaptive-backend/internal/services"
	"github.com/studyloop/adaptive-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	serviceName := utils.GetEnv("SERVICE_NAME", "adaptive-backend", log)
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	behaviorRecordRepo := repos.NewBehaviorRecordRepo(thePG, log)
	profileRepo := repos.NewLearningStyleProfileRepo(thePG, log)

	// Clients
	statusCache, err := redis.NewStatusCache(log)
	if err != nil {
		log.Warn("Redis status cache unavailable, serving status uncached", "error", err)
		statusCache = nil
	}
	mlClient := mlservice.NewHTTPClient(log)

	// Services
	log.Info("Setting up Services from main...")
	featureService := services.NewFeatureEngineeringService(behaviorRecordRepo, log)
	labelingService := services.NewRuleBasedLabelingService(log)
	questionnaireService := services.NewQuestionnaireService(log)
	classificationService := services.NewClassificationService(
		featureService,
		labelingService,
		questionnaireService,
		mlClient,
		profileRepo,
		behaviorRecordRepo,
		statusCache,
		log,
	)
	trackingService := services.NewTrackingService(
		behaviorRecordRepo,
		profileRepo,
		featureService,
		classificationService,
		statusCache,
		log,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	behaviorHandler := handlers.NewBehaviorHandler(log, trackingService, classificationService)
	classificationHandler := handlers.NewClassificationHandler(log, classificationService, questionnaireService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:        authMiddleware,
		BehaviorHandler:       behaviorHandler,
		ClassificationHandler: classificationHandler,
		ServiceName:           serviceName,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
