package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/solarpro/erp/pkg/api"
	"github.com/solarpro/erp/pkg/async"
	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/config"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/middleware"
	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/scheduler"
	"github.com/solarpro/erp/pkg/settings"
	"github.com/solarpro/erp/pkg/sso"
	"github.com/solarpro/erp/pkg/storage"
	"github.com/solarpro/erp/pkg/storage/memory"
	"github.com/solarpro/erp/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading SOLARPRO_* variables")
	migrate := pflag.Bool("migrate", false, "run database migrations before serving")
	seed := pflag.Bool("seed", false, "load default settings into empty collections before serving")
	migrateOnly := pflag.Bool("migrate-only", false, "run migrations and seeding, then exit")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runOptions{migrate: *migrate || *migrateOnly, seed: *seed || *migrateOnly, exitAfterSetup: *migrateOnly}
	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.WithError(err).Fatal("SolarPro API stopped")
	}
}

type runOptions struct {
	migrate        bool
	seed           bool
	exitAfterSetup bool
}

// backend is the store plus the handles the health checker and jobs need
type backend struct {
	store storage.Store
	db    *sql.DB
	close func() error
}

func run(ctx context.Context, cfg *config.Config, opts runOptions, logger *logrus.Logger) error {
	lc := observability.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return fmt.Errorf("failed to create otel metrics: %w", err)
	}

	be, err := openBackend(ctx, cfg, observability.StoreObservers{metrics, otelMetrics}, logger)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	if opts.migrate && be.db != nil {
		if err := postgres.RunMigrations(ctx, be.db, logger); err != nil {
			return err
		}
	}
	if opts.seed {
		seedFile, err := readSeedFile(cfg.Maintenance.SeedFile)
		if err != nil {
			return err
		}
		if _, err := settings.Seed(ctx, be.store, seedFile, logger); err != nil {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
		if err := bootstrapAdmin(ctx, auth.NewService(be.store, tokens, logger), cfg.Auth, logger); err != nil {
			return err
		}
	}
	if opts.exitAfterSetup {
		return be.close()
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
	}

	var revocations auth.RevocationList = auth.NewLocalRevocations(cfg.Auth.RevocationCacheSize, cfg.Auth.TokenTTL)
	limitCfg := middleware.RateLimitConfig{Requests: cfg.Auth.SignInAttempts, Window: cfg.Auth.SignInWindow}
	var signInLimiter middleware.Limiter
	localLimiter := middleware.NewRateLimiter(limitCfg)
	if redisClient != nil {
		revocations = auth.NewRedisRevocations(redisClient)
		signInLimiter = middleware.NewDistributedRateLimiter(redisClient, limitCfg, "solarpro:signin")
	} else {
		signInLimiter = localLimiter
	}
	authService := auth.NewService(be.store, tokens, logger, auth.WithRevocations(revocations))

	sched := scheduler.New(logger, cfg.Maintenance.JobTimeout)
	auditLogger, auditPool, err := buildAuditLogger(ctx, cfg.Audit, be.store, sched, cfg.Maintenance.ArchiveFlushSchedule, logger)
	if err != nil {
		return err
	}

	if err := sched.Add("rate-limit-cleanup", "@every 5m", func(context.Context) error {
		localLimiter.Cleanup()
		return nil
	}); err != nil {
		return err
	}
	if be.db != nil && cfg.Observability.MetricsEnabled {
		if err := sched.Add("db-stats", cfg.Maintenance.DBStatsSchedule, func(context.Context) error {
			metrics.CollectDBStats(be.db)
			return nil
		}); err != nil {
			return err
		}
	}
	sched.Start()

	if cfg.Maintenance.WatchSeed {
		lc.AddWorker("seed-watcher", func(ctx context.Context) error {
			return settings.WatchSeed(ctx, be.store, cfg.Maintenance.SeedFile, logger)
		})
	}

	clientIP, err := httputil.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		ClientIP:      clientIP,
		Store:         be.store,
		Auth:          authService,
		AuditLogger:   auditLogger,
		OTelMetrics:   otelMetrics,
		SignInLimiter: signInLimiter,
		APIKey:        cfg.Storage.APIKey,
		CookieName:    cfg.Auth.CookieName,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Logger:        logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
	}
	if cfg.SSO.Enabled() {
		provider, err := sso.NewOIDCProvider(ctx, sso.Config{
			IssuerURL:    cfg.SSO.IssuerURL,
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.RedirectURL,
		})
		if err != nil {
			return err
		}
		deps.SSO = provider
		deps.SSORedirect = cfg.SSO.PostLoginRedirect
	}
	server, err := api.NewServer(deps)
	if err != nil {
		return err
	}

	lc.AddServer("api", &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker(be, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	lc.AddServer("health", &http.Server{
		Addr:              cfg.Server.HealthAddr(),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	})

	logger.WithFields(logrus.Fields{
		"version": version,
		"store":   cfg.Storage.Type,
		"redis":   redisClient != nil,
		"sso":     cfg.SSO.Enabled(),
	}).Info("Starting SolarPro API")

	// Shutdown functions run in order: jobs, then audit delivery, then the
	// connections they write through.
	lc.RegisterShutdownFunc(sched.Stop)
	lc.RegisterShutdownFunc(func(context.Context) error { return auditLogger.Close() })
	if auditPool != nil {
		lc.RegisterShutdownFunc(func(context.Context) error { return auditPool.Shutdown(10 * time.Second) })
	}
	if redisClient != nil {
		lc.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	lc.RegisterShutdownFunc(func(context.Context) error { return be.close() })
	lc.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	return lc.Run(ctx)
}

// healthChecker requires the settings store and treats Redis as optional,
// since revocations and rate limits fall back to local state.
func healthChecker(be *backend, redisClient *redis.Client) *observability.HealthChecker {
	checker := observability.NewHealthChecker(version)
	if be.db != nil {
		checker.Require("database", observability.DatabaseProbe(be.db))
	}
	roles, _ := settings.CollectionFor(settings.KindRole)
	checker.Require("settings", func(ctx context.Context) error {
		_, err := be.store.Select(ctx, storage.Query{Collection: roles, Limit: 1})
		return err
	})
	if redisClient != nil {
		checker.Optional("redis", observability.RedisProbe(redisClient))
	}
	return checker
}

func openBackend(ctx context.Context, cfg *config.Config, observer postgres.Observer, logger logrus.FieldLogger) (*backend, error) {
	if cfg.Storage.Type == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return &backend{
			store: memory.New(memory.WithUnique(auth.UsersCollection, "email")),
			close: func() error { return nil },
		}, nil
	}

	cm, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return nil, err
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)
	return &backend{
		store: postgres.NewStoreWithConnections(cm).WithObserver(observer),
		db:    cm.Primary(),
		close: cm.Close,
	}, nil
}

// buildAuditLogger fans events out to the log, the audit_logs collection
// and, when configured, the S3 archive flushed by sched. The returned pool
// is nil for synchronous delivery.
func buildAuditLogger(ctx context.Context, cfg config.AuditConfig, store storage.Store, sched *scheduler.Scheduler, flushSpec string, logger logrus.FieldLogger) (*audit.MultiLogger, *async.WorkerPool, error) {
	loggers := []audit.Logger{audit.NewLogrusLogger(logger)}

	if cfg.StoreEnabled {
		storeLogger, err := audit.NewStoreLogger(store)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, storeLogger)
	}

	if cfg.ArchiveEnabled() {
		archiveCfg := audit.ArchiveConfig{
			Bucket:       cfg.ArchiveBucket,
			Region:       cfg.ArchiveRegion,
			Endpoint:     cfg.ArchiveEndpoint,
			Prefix:       cfg.ArchivePrefix,
			AccessKey:    cfg.ArchiveAccessKey,
			SecretKey:    cfg.ArchiveSecretKey,
			UsePathStyle: cfg.ArchivePathStyle,
			BatchSize:    cfg.ArchiveBatchSize,
		}
		client, err := audit.NewS3Client(ctx, archiveCfg)
		if err != nil {
			return nil, nil, err
		}
		archive, err := audit.NewArchiveLogger(client, archiveCfg)
		if err != nil {
			return nil, nil, err
		}
		if err := sched.Add("audit-archive-flush", flushSpec, archive.Flush); err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, archive)
	}

	multi := audit.NewMultiLogger(loggers...)
	if !cfg.Async {
		return multi, nil, nil
	}

	pool := async.NewWorkerPool(context.WithoutCancel(ctx), cfg.Workers, "audit", 10*time.Second, logger)
	multi.SetAsync(pool)
	err := sched.Add("audit-delivery-report", "@every 1m", func(context.Context) error {
		reportDeliveryErrors(multi, pool, logger)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return multi, pool, nil
}

// reportDeliveryErrors logs destination failures and panicked delivery
// tasks collected since the last call
func reportDeliveryErrors(multi *audit.MultiLogger, pool *async.WorkerPool, logger logrus.FieldLogger) {
	for _, err := range multi.GetErrors() {
		logger.WithError(err).Warn("Audit delivery failed")
	}
	for {
		select {
		case err := <-pool.Errors():
			logger.WithError(err).Warn("Audit delivery task failed")
		default:
			return
		}
	}
}

// bootstrapAdmin creates the configured first admin. An existing account
// with that email is left untouched.
func bootstrapAdmin(ctx context.Context, svc *auth.Service, cfg config.AuthConfig, logger logrus.FieldLogger) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	_, err := svc.Register(ctx, auth.SignUpRequest{
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		FullName: "Administrator",
	}, rbac.RoleAdmin)
	if errors.Is(err, storage.ErrConflict) {
		logger.WithField("email", cfg.BootstrapAdminEmail).Info("Bootstrap admin already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.WithField("email", cfg.BootstrapAdminEmail).Info("Bootstrap admin created")
	return nil
}

func readSeedFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return data, nil
}
