package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/noah-isme/backoffice-api/api/swagger"
	"github.com/noah-isme/backoffice-api/internal/handler"
	"github.com/noah-isme/backoffice-api/internal/repository"
	"github.com/noah-isme/backoffice-api/internal/router"
	"github.com/noah-isme/backoffice-api/internal/service"
	"github.com/noah-isme/backoffice-api/pkg/cache"
	"github.com/noah-isme/backoffice-api/pkg/config"
	"github.com/noah-isme/backoffice-api/pkg/database"
	"github.com/noah-isme/backoffice-api/pkg/jobs"
	"github.com/noah-isme/backoffice-api/pkg/logger"
	"github.com/noah-isme/backoffice-api/pkg/retry"
	"github.com/noah-isme/backoffice-api/pkg/storage"
)

// @title Back Office API
// @version 1.0.0
// @description Warehouse and retail back-office: product catalog, inter-store dispatches, breakage reports, exports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	dispatchRepo := repository.NewDispatchRepository(db)
	breakageRepo := repository.NewBreakageRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.ListTTL, logr, cfg.Cache.Enabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Cache.ListTTL, logr, false)
	}

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "backoffice-api",
	})

	productSvc := service.NewProductService(productRepo, cacheSvc, cfg.Cache.ListTTL, logr)
	dispatchSvc := service.NewDispatchService(dispatchRepo, productRepo, storeRepo, userRepo, cacheSvc, cfg.Cache.ListTTL, logr)
	breakageSvc := service.NewBreakageService(breakageRepo, dispatchRepo, dispatchSvc, storeRepo, userRepo, logr)

	lookupSvc := service.NewLookupService(storeRepo, productRepo, userRepo, cacheSvc, retry.Config{
		Attempts:     cfg.Lookups.RetryAttempts,
		InitialDelay: cfg.Lookups.RetryDelay,
		MaxDelay:     cfg.Lookups.RetryMaxDelay,
	}, cfg.Cache.FormTTL, logr)

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportJobRepo, productRepo, dispatchRepo, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)

		exportQueue = jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.SetQueue(exportQueue)
	} else {
		exportSvc = service.NewExportService(exportJobRepo, productRepo, dispatchRepo, nil, nil, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
		}, logr)
	}

	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Products: handler.NewProductHandler(productSvc),
		Dispatch: handler.NewDispatchHandler(dispatchSvc),
		Breakage: handler.NewBreakageHandler(breakageSvc),
		Lookups:  handler.NewLookupHandler(lookupSvc),
		Exports:  handler.NewExportHandler(exportSvc),
		Metrics:  handler.NewMetricsHandler(metrics, db, redisClient),
	}

	engine := router.New(cfg, logr, authSvc, metrics, userRepo, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exportQueue != nil {
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(ctx)
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
