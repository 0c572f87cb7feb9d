package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studyloop/adaptive-backend/internal/handlers"
	"github.com/studyloop/adaptive-backend/internal/middleware"
	"github.com/studyloop/adaptive-backend/internal/utils"
)

type RouterConfig struct {
	AuthMiddleware        *middleware.AuthMiddleware
	BehaviorHandler       *handlers.BehaviorHandler
	ClassificationHandler *handlers.ClassificationHandler
	ServiceName           string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/api/learning-style/questionnaire", cfg.ClassificationHandler.GetQuestionnaire)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Behavior tracking
	protected.POST("/behavior/track", cfg.BehaviorHandler.Track)
	protected.GET("/behavior/summary", cfg.BehaviorHandler.Summary)
	protected.POST("/behavior/reset", cfg.BehaviorHandler.Reset)
	// Learning style
	protected.POST("/learning-style/classify", cfg.ClassificationHandler.Classify)
	protected.GET("/learning-style/status", cfg.ClassificationHandler.Status)
	protected.GET("/learning-style/profile", cfg.ClassificationHandler.GetProfile)
	protected.POST("/learning-style/questionnaire", cfg.ClassificationHandler.SubmitQuestionnaire)

	return router
}

func allowedOrigins() []string {
	raw := utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5174", nil)
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
