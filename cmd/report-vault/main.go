package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/shrs-dev/report-vault/api/swagger"
	"github.com/shrs-dev/report-vault/internal/handler"
	"github.com/shrs-dev/report-vault/internal/middleware"
	"github.com/shrs-dev/report-vault/internal/repository"
	"github.com/shrs-dev/report-vault/internal/service"
	"github.com/shrs-dev/report-vault/pkg/cache"
	"github.com/shrs-dev/report-vault/pkg/config"
	"github.com/shrs-dev/report-vault/pkg/database"
	"github.com/shrs-dev/report-vault/pkg/jobs"
	"github.com/shrs-dev/report-vault/pkg/logger"
	corsmiddleware "github.com/shrs-dev/report-vault/pkg/middleware/cors"
	reqidmiddleware "github.com/shrs-dev/report-vault/pkg/middleware/requestid"
	"github.com/shrs-dev/report-vault/pkg/storage"
)

// @title Report Vault API
// @version 1.0.0
// @description Health report upload, catalog and two-phase deletion service
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to record store", "error", err)
	}
	defer db.Close() //nolint:errcheck

	store, err := storage.NewLocalObjectStore(cfg.Storage.Dir, cfg.Storage.Bucket, cfg.Storage.PublicURLBase)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	reportRepo := repository.NewReportRepository(db)
	orphanRepo := repository.NewOrphanRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The audit queue is always constructed; when disabled it never starts and
	// notifications are logged and dropped.
	orphanSvc := service.NewOrphanService(orphanRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Orphans.WorkerConcurrency,
		MaxRetries: cfg.Orphans.WorkerRetries,
	})
	if cfg.Orphans.Enabled {
		orphanSvc.Start(ctx)
		defer orphanSvc.Stop()
	}

	catalogSvc := service.NewCatalogService(reportRepo, cacheSvc, metricsSvc, logr)

	uploadSvc := service.NewUploadService(reportRepo, store, orphanSvc, catalogSvc, metricsSvc, logr, service.UploadServiceConfig{
		MaxFileSize:  cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	})
	deleteSvc := service.NewDeleteService(reportRepo, store, orphanSvc, catalogSvc, metricsSvc, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(catalogSvc)
	}

	reportHandler := handler.NewReportHandler(uploadSvc, deleteSvc, catalogSvc, exportSvc, store, signer, cfg.APIPrefix)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "record store unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/reports", reportHandler.Upload)
		api.GET("/reports", reportHandler.List)
		api.GET("/reports/export", reportHandler.Export)
		api.GET("/reports/:patientId/:reportId", reportHandler.Get)
		api.PATCH("/reports/:patientId/:reportId", reportHandler.Save)
		api.DELETE("/reports/:patientId/:reportId", reportHandler.Delete)
		api.POST("/reports/:patientId/:reportId/edit", reportHandler.BeginEdit)
		api.POST("/reports/:patientId/:reportId/edit/cancel", reportHandler.CancelEdit)
		api.GET("/reports/:patientId/:reportId/download", reportHandler.Download)

		orphanHandler := handler.NewOrphanHandler(orphanSvc)
		api.GET("/orphans", orphanHandler.List)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
