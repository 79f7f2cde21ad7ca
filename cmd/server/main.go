package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"autoparts/docs"
	"autoparts/internal/auth"
	"autoparts/internal/cache"
	"autoparts/internal/config"
	"autoparts/internal/db"
	"autoparts/internal/events"
	"autoparts/internal/handler"
	"autoparts/internal/logger"
	"autoparts/internal/metrics"
	"autoparts/internal/middleware"
	"autoparts/internal/repository"
	"autoparts/internal/router"
	"autoparts/internal/service"
	"autoparts/internal/storage"
)

// @title Auto Parts Store API
// @version 1.0
// @description Catalog, checkout and order management API for an auto parts store.
// @host localhost:3001
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	logFormat := cfg.LogFormat
	if logFormat == "" && cfg.IsProduction() {
		logFormat = "json"
	}
	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: logFormat, File: cfg.LogFile})

	gormDB, err := db.Open(db.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN, Silent: cfg.IsProduction()})
	if err != nil {
		log.Error("database init", "error", err)
		os.Exit(1)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Error("reset database", "error", err)
			os.Exit(1)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Error("auto-migrate", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unreachable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
	}

	disk, err := storage.New(ctx, storage.Options{
		Driver:     cfg.StorageDriver,
		LocalRoot:  cfg.StorageLocalRoot,
		PublicURL:  cfg.StoragePublicURL,
		S3Bucket:   cfg.S3Bucket,
		S3Region:   cfg.S3Region,
		S3Key:      cfg.S3Key,
		S3Secret:   cfg.S3Secret,
		S3Endpoint: cfg.S3Endpoint,
		S3URL:      cfg.S3URL,
	})
	if err != nil {
		log.Error("storage init", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, OrderTopic: cfg.KafkaOrderTopic})
	appMetrics := metrics.New()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	categoryRepo := repository.NewCategoryRepository(gormDB)
	productRepo := repository.NewProductRepository(gormDB)
	orderRepo := repository.NewOrderRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	catalogService := service.NewCatalogService(categoryRepo, productRepo, cacheClient, disk)
	orderService := service.NewOrderService(orderRepo, catalogService, appMetrics, publisher)

	var uploadsDir string
	if local, ok := disk.(*storage.LocalDisk); ok {
		uploadsDir = local.Root()
	}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Category: handler.NewCategoryHandler(catalogService),
		Product:  handler.NewProductHandler(catalogService),
		Order:    handler.NewOrderHandler(orderService),
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return db.Ping(ctx, gormDB)
		}),
	}, router.Deps{
		Tokens:     authService,
		RateLimit:  middleware.NewRateLimitStore(cacheClient, cfg.RateLimitMax, cfg.RateLimitWindow),
		Metrics:    appMetrics,
		UploadsDir: uploadsDir,
	})

	addr := ":" + cfg.ServerPort
	go func() {
		log.Info("server starting", "addr", addr, "env", cfg.AppEnv, "swagger", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if err := orderService.Drain(shutdownCtx); err != nil {
		log.Error("order events still pending at shutdown", "error", err)
	}
	closeAll(log, gormDB, cacheClient, publisher)
}

func closeAll(log *slog.Logger, gormDB *gorm.DB, cacheClient *cache.Client, publisher events.Publisher) {
	if err := publisher.Close(); err != nil {
		log.Error("close event publisher", "error", err)
	}
	if err := cacheClient.Close(); err != nil {
		log.Error("close redis", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}
}
