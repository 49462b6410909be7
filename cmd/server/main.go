package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"promptbench/server"
)

const jobCleanupInterval = 10 * time.Minute

func Run() error {
	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.DebugMode)
	}

	settings := server.LoadSettings()
	for _, problem := range server.ValidateSettings(settings) {
		server.AppLogger.Warn("Configuration: %s", problem)
	}

	svc := server.NewServices(settings)

	// Create Gin router without default middleware (we use custom middleware)
	router := gin.New()
	server.SetupRoutes(router, svc)

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", settings.Port),
		Handler:        router,
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   0, // Disabled for SSE connections
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go purgeFinishedJobs(ctx, svc.Jobs)

	serveErr := make(chan error, 1)
	go func() {
		server.AppLogger.InfoWithFields("Server starting", map[string]interface{}{
			"port":        settings.Port,
			"models":      settings.ModelsURL,
			"concurrency": settings.MaxParallel,
			"resultsDir":  settings.ResultsDir,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	server.AppLogger.Info("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.AppLogger.Error("Server forced to shutdown: %v", err)
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	server.AppLogger.Info("Server exited gracefully")
	return nil
}

func purgeFinishedJobs(ctx context.Context, jobs *server.JobManager) {
	ticker := time.NewTicker(jobCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs.CleanupOldJobs(server.DefaultJobRetention)
		}
	}
}
