package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ds-monitor/engine/pkg/config"
	"github.com/ds-monitor/engine/pkg/database"
	"github.com/ds-monitor/engine/pkg/logger"

	"github.com/ds-monitor/engine/internal/queue/tasks"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/internal/services"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.L().Fatal("failed to open database", zap.Error(err))
	}

	projectRepo := repository.NewProjectRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	dashboardSvc := services.NewDashboardService(projectRepo, forecastRepo)

	// Report files land under WORKING_DIR, falling back to the system temp
	// directory.
	workingDir := cfg.WorkingDir
	if workingDir == "" {
		workingDir = os.TempDir()
	} else {
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			logger.L().Fatal("failed to create working dir", zap.Error(err))
		}
	}

	handler := tasks.NewReportTaskHandler(dashboardSvc, workingDir)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeDashboardReport, handler.HandleDashboardReport)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	srv.Shutdown()
}
