package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/class-schedule/api/swagger"
	"github.com/noah-isme/class-schedule/internal/handler"
	"github.com/noah-isme/class-schedule/internal/realtime"
	"github.com/noah-isme/class-schedule/internal/repository"
	"github.com/noah-isme/class-schedule/internal/router"
	"github.com/noah-isme/class-schedule/internal/service"
	"github.com/noah-isme/class-schedule/pkg/cache"
	"github.com/noah-isme/class-schedule/pkg/config"
	"github.com/noah-isme/class-schedule/pkg/database"
	"github.com/noah-isme/class-schedule/pkg/logger"
)

// @title Class Schedule API
// @version 1.0.0
// @description CRUD service for a weekly class schedule.
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		version, err := database.Migrate(db, cfg.Database.Driver)
		if err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		logr.Info("database migrated", zap.Uint("version", version))
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else if rdb != nil {
		redisCache := repository.NewCacheRepository(rdb, "classes:")
		defer redisCache.Close()
		cacheRepo = redisCache
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Classes.CacheTTL, logr)

	hub := realtime.NewHub(logr, metrics.SetSubscribers)
	classSvc := service.NewClassService(repository.NewClassRepository(db), cacheSvc, hub, metrics, service.NewValidator(), logr)
	exportSvc := service.NewExportService(classSvc, logr)

	if cfg.Classes.SeedSampleData {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n, err := classSvc.SeedSampleData(ctx)
		cancel()
		if err != nil {
			logr.Fatal("failed to seed sample classes", zap.Error(err))
		}
		if n > 0 {
			logr.Info("seeded sample classes", zap.Int("count", n))
		}
	}

	handlers := &router.Handlers{
		Class:   handler.NewClassHandler(classSvc, exportSvc),
		Events:  handler.NewEventsHandler(hub, cfg.CORS.AllowedOrigins, logr),
		Metrics: handler.NewMetricsHandler(metrics, classSvc),
	}
	r := router.Setup(cfg, handlers, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver, "cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
