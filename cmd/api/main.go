package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/ds-monitor/engine/internal/api"
	"github.com/ds-monitor/engine/internal/api/handlers"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/internal/services"
	"github.com/ds-monitor/engine/pkg/config"
	"github.com/ds-monitor/engine/pkg/database"
	"github.com/ds-monitor/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting forecast engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("database connected")

	queue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer queue.Close()

	projectRepo := repository.NewProjectRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	updateRepo := repository.NewUpdateRepository(db)

	projectSvc := services.NewProjectService(projectRepo, updateRepo)
	forecastSvc := services.NewForecastService(db, forecastRepo, projectRepo, cfg.ForecastLimit)
	dashboardSvc := services.NewDashboardService(projectRepo, forecastRepo)

	router := api.NewRouter(api.Dependencies{
		HealthHandler:    handlers.NewHealthHandler(db),
		ProjectsHandler:  handlers.NewProjectsHandler(projectSvc),
		ForecastHandler:  handlers.NewForecastHandler(forecastSvc),
		DashboardHandler: handlers.NewDashboardHandler(dashboardSvc, queue),
		UpdatesHandler:   handlers.NewUpdatesHandler(projectSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
