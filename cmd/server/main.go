// Package main is the entry point for the LMS analytics service.
//
// The service ingests learner activity events, folds them into per-learner
// progress records and per-course snapshots, and serves both views over a
// REST API. The event log is the system of record; everything else can be
// rebuilt from it.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: event, progress, and course logic without external dependencies
// - Application: command/query orchestration over the aggregators
// - Infrastructure: persistence, catalog clients, scheduler, event bus
// - Interface: HTTP handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lmshub/lms-analytics/config"
	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/application/command"
	"github.com/lmshub/lms-analytics/internal/application/eventhandler"
	"github.com/lmshub/lms-analytics/internal/application/query"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/external/catalog"
	"github.com/lmshub/lms-analytics/internal/infrastructure/messaging"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/postgres"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/redis"
	"github.com/lmshub/lms-analytics/internal/infrastructure/scheduler"
	"github.com/lmshub/lms-analytics/internal/infrastructure/scheduler/jobs"
	"github.com/lmshub/lms-analytics/internal/infrastructure/service"
	httpserver "github.com/lmshub/lms-analytics/internal/interface/http"
	"github.com/lmshub/lms-analytics/internal/interface/http/handlers"
	"github.com/lmshub/lms-analytics/pkg/logger"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting LMS analytics service",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"storage", cfg.Storage.Backend,
		"catalog", cfg.Catalog.Source,
	)

	clock := timeutil.SystemClock{}
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		eventLog  event.Log
		records   progress.Repository
		snapshots course.SnapshotRepository
		dbConn    *postgres.Connection
	)

	switch cfg.Storage.Backend {
	case "postgres":
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		eventLog = postgres.NewEventLogRepo(dbConn)
		records = postgres.NewProgressRepo(dbConn)
		snapshots = postgres.NewSnapshotRepo(dbConn)
		health.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
		log.Info("database storage initialized")

	default:
		eventLog = memory.NewEventLog()
		records = memory.NewProgressStore()
		snapshots = memory.NewSnapshotStore()
		log.Info("in-memory storage initialized")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			health.AddCheck("cache", handlers.NewCacheCheck(redisCache))
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. COURSE CATALOG
	// ─────────────────────────────────────────────────────────────────────────
	var courseCatalog course.Catalog

	switch cfg.Catalog.Source {
	case "http":
		clientCfg := catalog.DefaultClientConfig(cfg.Catalog.BaseURL)
		clientCfg.APIKey = cfg.Catalog.APIKey
		clientCfg.Timeout = cfg.Catalog.RequestTimeout
		clientCfg.Logger = log
		client := catalog.NewClient(clientCfg)
		courseCatalog = service.NewCatalogAdapter(client, log)
		health.AddCheck("catalog", handlers.NewCatalogCheck(client))
		log.Info("HTTP catalog initialized", "base_url", cfg.Catalog.BaseURL)

	case "postgres":
		if dbConn == nil {
			dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to catalog database: %w", err)
			}
			defer dbConn.Close()
		}
		courseCatalog = postgres.NewCatalogRepo(dbConn)
		log.Info("database catalog initialized")

	default:
		seed, err := parseStaticCourses(cfg.Catalog.StaticCourses)
		if err != nil {
			return fmt.Errorf("invalid CATALOG_STATIC_COURSES: %w", err)
		}
		courseCatalog = memory.NewStaticCatalog(seed...)
		log.Info("static catalog initialized", "courses", len(seed))
	}

	if redisCache != nil && cfg.Features.IsEnabled(config.FeatureCatalogCache, nil) {
		courseCatalog = redis.NewCachedCatalog(courseCatalog, redisCache, log)
		log.Info("catalog caching enabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = cfg.Features.IsEnabled(config.FeatureAsyncEventBus, nil)
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	progressAgg := aggregator.NewProgressAggregator(records, courseCatalog, eventBus, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, records, eventBus, clock)
	validator := event.NewValidator(courseCatalog, cfg.Analytics.MaxClockSkew, clock)

	var snapshotCache query.SnapshotCache
	if redisCache != nil && cfg.Features.IsEnabled(config.FeatureSnapshotCache, nil) {
		snapshotCache = redis.NewSnapshotCache(redisCache, log)
		log.Info("snapshot caching enabled")
	}

	trackCmd := command.NewTrackActivityHandler(validator, eventLog, progressAgg, courseAgg, eventBus)
	rebuildCmd := command.NewRebuildCourseHandler(eventLog, progressAgg, courseAgg)
	progressQuery := query.NewGetProgressHandler(progressAgg)
	analyticsQuery := query.NewGetCourseAnalyticsHandler(courseAgg, snapshotCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	if snapshotCache != nil {
		invalidator := eventhandler.NewOnSnapshotUpdatedHandler(snapshotCache, log)
		if err := invalidator.Register(eventBus); err != nil {
			return fmt.Errorf("failed to register snapshot handler: %w", err)
		}
	}
	completions := eventhandler.NewOnUnitCompletedHandler(log)
	if err := completions.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register completion handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureAuditJob, nil) {
		schedCfg := scheduler.DefaultSchedulerConfig()
		schedCfg.Logger = log
		schedCfg.Timezone = cfg.App.Location
		schedCfg.MaxHistorySize = cfg.Scheduler.MaxHistorySize
		sched = scheduler.NewScheduler(schedCfg)

		auditJob := jobs.NewAuditConsistencyJob(snapshots, courseAgg, eventLog, log, jobs.AuditConsistencyConfig{
			MaxCourses: cfg.Scheduler.AuditMaxCourses,
			Timeout:    cfg.Scheduler.JobTimeout,
		})

		var auditSchedule scheduler.Schedule
		if cfg.Scheduler.AuditCron != "" {
			auditSchedule, err = scheduler.ParseCronExpression(cfg.Scheduler.AuditCron)
			if err != nil {
				return fmt.Errorf("invalid SCHEDULER_AUDIT_CRON: %w", err)
			}
		} else {
			auditSchedule = scheduler.NewIntervalSchedule(cfg.Scheduler.AuditInterval)
		}

		if err := sched.Register(auditJob, auditSchedule); err != nil {
			return fmt.Errorf("failed to register audit job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started", "audit_schedule", auditSchedule.String())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpCfg.APIKeys = cfg.HTTP.APIKeys
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	httpDeps := httpserver.Dependencies{
		TrackActivityHandler:      trackCmd,
		GetProgressHandler:        progressQuery,
		GetCourseAnalyticsHandler: analyticsQuery,
		Logger:                    setupHTTPLogger(cfg),
		HealthChecker:             health,
	}
	if cfg.Features.IsEnabled(config.FeatureAdminRebuild, nil) {
		httpDeps.RebuildCourseHandler = rebuildCmd
	}

	server := httpserver.NewServer(httpCfg, httpDeps)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", server.Address())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("LMS analytics service is running", "http_address", server.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down HTTP server gracefully", "error", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// setupLogger builds the slog logger used across infrastructure.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// setupHTTPLogger builds the request logger for the HTTP layer.
func setupHTTPLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	return logger.New(opts)
}

// parseStaticCourses parses "id:title:unitCount" entries.
func parseStaticCourses(entries []string) ([]course.Info, error) {
	infos := make([]course.Info, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("entry %q: want id:title:unitCount", entry)
		}

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad course id: %w", entry, err)
		}
		units, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad unit count: %w", entry, err)
		}

		infos = append(infos, course.Info{
			ID:        shared.CourseID(id),
			Title:     parts[1],
			UnitCount: units,
		})
	}
	return infos, nil
}
