package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/intake-processor/api/handlers"
	"github.com/feichai0017/intake-processor/api/routes"
	"github.com/feichai0017/intake-processor/config"
	"github.com/feichai0017/intake-processor/internal/service/intake"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

func main() {
	appCfg := config.GetAppConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(appCfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", appCfg.LogFile}),
		logger.WithService("intake-processor"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init intake service
	svc, err := intake.GetService(ctx, log)
	if err != nil {
		log.Fatal("Failed to get intake service:", logger.Error(err))
	}
	defer svc.Close()

	go runRetention(ctx, svc, appCfg.ArchiveRetention, log)

	// init handlers
	h := handlers.NewHandlers(svc, log)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = appCfg.MaxUploadBytes
	routes.SetupRoutes(r, h, appCfg.AllowedOrigins, log)

	srv := &http.Server{
		Addr:    ":" + appCfg.Port,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("port", appCfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error:", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown:", logger.Error(err))
	}
}

// runRetention prunes the archive once an hour until ctx is done.
func runRetention(ctx context.Context, svc *intake.IntakeService, retention time.Duration, log logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CleanupArchive(ctx, retention); err != nil {
				log.Error("Archive cleanup failed", logger.Error(err))
			}
		}
	}
}
