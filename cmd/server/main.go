package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osspulse/oss-pulse/internal/api"
	"github.com/osspulse/oss-pulse/internal/cache"
	"github.com/osspulse/oss-pulse/internal/config"
	"github.com/osspulse/oss-pulse/internal/database"
	"github.com/osspulse/oss-pulse/internal/monitoring"
	"github.com/osspulse/oss-pulse/internal/ratelimit"
)

func main() {
	appLogger := monitoring.NewLogger()
	slog.SetDefault(appLogger.Logger)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.Database.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	appMetrics := monitoring.NewMetrics()

	redisClient, err := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// Degraded but serviceable; the limiter falls back to in-memory buckets.
		slog.Warn("Continuing without Redis", "error", err)
	}
	defer redisClient.Close()

	limiter := ratelimit.NewRateLimiter(redisClient, cfg.RateLimit, appMetrics)

	respCache := cache.New(time.Duration(cfg.Cache.TTLSeconds) * time.Second)

	handler := api.NewHandler(repo, respCache, appLogger, appMetrics, cfg.Scoring.CompositeWindowDays)
	router := api.NewRouter(cfg, handler, limiter, appMetrics, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
