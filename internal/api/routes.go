package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(log))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.GET("", handler.ListRuns)
			runs.GET("/:id", handler.GetRun)
		}

		v1.GET("/insights/digest", handler.GetInsightDigest)
	}

	return router
}
