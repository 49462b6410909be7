package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware
func SetupRoutes(router *gin.Engine, svc *Services) {
	handlers := NewHandlers(svc)

	// Apply global middleware in order
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(CORSConfigFromOrigins(svc.Settings.CORSOrigin)))
	router.Use(LoggingMiddleware())
	router.Use(ErrorHandlingMiddleware())
	router.Use(RequestValidationMiddleware())

	router.GET("/", RootHandler)
	router.GET("/health", HealthHandler)
	router.GET("/models", handlers.Models)

	router.POST("/generate", handlers.Generate)

	router.POST("/benchmark", handlers.Benchmark)
	router.POST("/benchmark/async", handlers.StartBenchmark)

	router.GET("/jobs", handlers.ListJobs)
	router.GET("/jobs/:jobId", handlers.GetJobStatus)
	router.GET("/jobs/:jobId/stream", handlers.StreamJobProgress)

	if svc.Hub != nil {
		router.GET("/ws", svc.Hub.HandleWebSocket)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "The requested endpoint does not exist",
			Code:    http.StatusNotFound,
		})
	})
}
