package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/cache"
	"github.com/staffhub/backend/internal/infrastructure/config"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	"github.com/staffhub/backend/internal/infrastructure/logger"
	"github.com/staffhub/backend/internal/infrastructure/migration"
	"github.com/staffhub/backend/internal/infrastructure/persistence"
	"github.com/staffhub/backend/internal/infrastructure/scheduler"
	"github.com/staffhub/backend/internal/infrastructure/storage"
	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"github.com/staffhub/backend/internal/interfaces/http/handler"
	"github.com/staffhub/backend/internal/interfaces/http/middleware"
	"github.com/staffhub/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting integration hub",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so the database plugins find the global providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := migrateSchema(db, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	}

	var syncMetrics *telemetry.SyncMetrics
	if meterProvider.IsEnabled() {
		syncMetrics, err = telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:  meterProvider.Meter("integration.sync"),
			Logger: log,
		})
		if err != nil {
			log.Warn("Sync metrics disabled", zap.Error(err))
		}
	}

	// Run lock and dashboard cache: Redis when enabled, process-local otherwise
	storeFactory := cache.NewStoreFactory(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Redis.Enabled,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	stores, err := storeFactory.CreateStores()
	if err != nil {
		log.Fatal("Failed to create stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing stores", zap.Error(err))
		}
	}()

	registry, err := connector.NewDefaultRegistry(connectorConfig(cfg.Connectors), log)
	if err != nil {
		log.Fatal("Failed to build connector registry", zap.Error(err))
	}

	// Repositories
	sourceRepo := persistence.NewGormIntegrationSourceRepository(db.DB)
	recordRepo := persistence.NewGormIntegrationRecordRepository(db.DB)
	mappingRepo := persistence.NewGormFieldMappingRepository(db.DB)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Sync worker pool
	workerPool, err := scheduler.NewSyncWorkerPool(scheduler.SyncWorkerPoolConfig{
		Workers:    cfg.Scheduler.Workers,
		QueueSize:  cfg.Scheduler.QueueSize,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create sync worker pool", zap.Error(err))
	}
	if err := workerPool.Start(ctx); err != nil {
		log.Fatal("Failed to start sync worker pool", zap.Error(err))
	}

	// Application services
	mappingEngine := integrationapp.NewMappingEngine(mappingRepo, log)
	sourceService := integrationapp.NewSourceService(sourceRepo, recordRepo, runRepo, log,
		integrationapp.WithSourceRunLock(stores.RunLock),
	)
	mappingService := integrationapp.NewMappingService(sourceRepo, mappingRepo, log)
	dashboardService := integrationapp.NewDashboardService(sourceRepo, recordRepo, mappingRepo, runRepo, registry,
		integrationapp.WithDashboardCache(stores.Dashboard, cfg.Dashboard.CacheTTL),
		integrationapp.WithDashboardLogger(log),
	)
	syncService := integrationapp.NewSyncService(sourceRepo, runRepo, recordRepo, mappingEngine, registry,
		stores.RunLock, workerPool,
		integrationapp.SyncConfig{LockTTL: cfg.Scheduler.RunLockTTL},
		integrationapp.WithSyncLogger(log),
		integrationapp.WithSyncMetrics(syncMetrics),
	)

	importOpts := []integrationapp.ImportServiceOption{
		integrationapp.WithImportLogger(log),
		integrationapp.WithImportMetrics(syncMetrics),
	}
	if cfg.Archive.Enabled {
		archive, err := storage.NewS3ArchiveStore(ctx, &cfg.Archive, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create upload archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Upload archive bucket check failed", zap.String("bucket", archive.Bucket()), zap.Error(err))
		}
		importOpts = append(importOpts, integrationapp.WithImportArchive(archive))
		log.Info("CSV uploads are archived", zap.String("bucket", archive.Bucket()))
	}
	importService := integrationapp.NewImportService(sourceRepo, runRepo, recordRepo, mappingEngine,
		stores.RunLock,
		integrationapp.ImportConfig{LockTTL: cfg.Import.RunLockTTL, MaxErrors: cfg.Import.MaxErrors},
		importOpts...,
	)

	// Runs left running by a previous process can never finish
	if recovered, err := syncService.RecoverStaleRuns(ctx); err != nil {
		log.Warn("Stale run recovery failed", zap.Error(err))
	} else if recovered > 0 {
		log.Info("Recovered stale sync runs", zap.Int("count", recovered))
	}

	var cronTrigger *scheduler.SyncCronTrigger
	if cfg.Scheduler.Enabled {
		cronCfg := scheduler.DefaultSyncCronTriggerConfig()
		cronCfg.Schedule = cfg.Scheduler.SyncCron
		cronTrigger, err = scheduler.NewSyncCronTrigger(cronCfg, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync cron trigger", zap.Error(err))
		}
		if err := cronTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync cron trigger", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var redisPinger handler.Pinger
	if stores.Distributed {
		redisPinger = stores
	}
	handlers := router.Handlers{
		Sources:  handler.NewIntegrationSourceHandler(sourceService, dashboardService),
		Syncs:    handler.NewSyncHandler(syncService),
		Imports:  handler.NewImportHandler(importService),
		Mappings: handler.NewMappingHandler(mappingService),
		System:   handler.NewSystemHandler(cfg.App.Name, Version, db, redisPinger),
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine, err := router.NewEngine(router.EngineConfig{
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS: middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		MaxBodySize: cfg.HTTP.MaxBodySize,
		RateLimiter: rateLimiter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       meterProvider.IsEnabled(),
			Logger:        log,
		},
	}, handlers, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cronTrigger != nil {
		if err := cronTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Sync cron trigger did not stop cleanly", zap.Error(err))
		}
	}
	// Stopping the pool cancels running syncs; they end as partial
	if err := workerPool.Stop(shutdownCtx); err != nil {
		log.Warn("Sync worker pool did not drain", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded migrations before anything touches the tables
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	migrator, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	return migrator.Up()
}

// connectorConfig maps the file/env settings onto the adapter configuration
func connectorConfig(cfg config.ConnectorsConfig) connector.Config {
	out := connector.DefaultConfig()
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.PageSize > 0 {
		out.PageSize = cfg.PageSize
	}
	if cfg.RateLimitRPS > 0 {
		out.RateLimitRPS = cfg.RateLimitRPS
	}
	if cfg.RateBurst > 0 {
		out.RateBurst = cfg.RateBurst
	}
	if cfg.MaxRetries > 0 {
		out.Retry.MaxAttempts = cfg.MaxRetries
	}
	out.AsanaWorkspace = cfg.AsanaWorkspace

	credentials := map[integration.SystemType]config.ConnectorCredentials{
		integration.SystemTypeServiceNow: cfg.ServiceNow,
		integration.SystemTypeJira:       cfg.Jira,
		integration.SystemTypeAsana:      cfg.Asana,
		integration.SystemTypeSAP:        cfg.SAP,
	}
	for systemType, c := range credentials {
		out.Credentials[systemType] = connector.Credentials{
			Username: c.Username,
			Password: c.Password,
			Token:    c.Token,
		}
	}
	return out
}
