package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/delivery/http/middleware"
	"github.com/GitRadiation/template-filler/internal/registry"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	SubmitUC        *usecase.SubmitJobUsecase
	GetJobUC        *usecase.GetJobUsecase
	ListJobsUC      *usecase.ListJobsUsecase
	Registry        *registry.Registry
	HealthChecks    map[string]Pinger
	Logger          *zap.Logger
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		templateHandler := NewTemplateHandler(deps.Registry)
		v1.GET("/templates", templateHandler.List)

		uploadHandler := NewUploadHandler(deps.SubmitUC, deps.Logger)
		v1.POST("/upload",
			middleware.RateLimiter(deps.RateLimitPerMin),
			middleware.BodySizeLimit(deps.MaxBodyBytes),
			uploadHandler.Upload,
		)

		jobHandler := NewJobHandler(deps.GetJobUC, deps.ListJobsUC, deps.Logger)
		v1.GET("/status/:id", jobHandler.Status)
		v1.GET("/download/:id", jobHandler.Download)
		v1.GET("/jobs", jobHandler.List)
	}

	return router
}
