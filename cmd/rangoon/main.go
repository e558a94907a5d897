package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/rangoon-shop/rangoon-admin/internal/app"
	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	audithttp "github.com/rangoon-shop/rangoon-admin/internal/audit/http"
	auditablehttp "github.com/rangoon-shop/rangoon-admin/internal/auditable/http"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable/pgstore"
	"github.com/rangoon-shop/rangoon-admin/internal/catalog/brands"
	"github.com/rangoon-shop/rangoon-admin/internal/catalog/products"
	"github.com/rangoon-shop/rangoon-admin/internal/catalog/regions"
	"github.com/rangoon-shop/rangoon-admin/internal/observability"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/cache"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/db"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
	"github.com/rangoon-shop/rangoon-admin/internal/session"
	"github.com/rangoon-shop/rangoon-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rangoon", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	engine, err := rbac.NewEngine(rbac.EngineConfig{
		Store:     rbac.NewPostgresStore(pool),
		Redis:     redisClient,
		Logger:    logger,
		CacheSize: cfg.RBACCacheSize,
	})
	if err != nil {
		return err
	}
	if err := engine.Load(ctx); err != nil {
		return err
	}
	rbacMiddleware := rbac.Middleware{Engine: engine, Logger: logger, Observer: metrics}

	postgresSink := audit.NewPostgresSink(pool)
	var sink audit.Sink = postgresSink
	if cfg.AsyncAudit() {
		client, err := jobs.NewClient(redisOpts.AsynqOpt())
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		sink = jobs.NewQueueingSink(postgresSink, client, jobs.BreakerSettings{
			ConsecutiveFailures: cfg.AuditBreakerFailures,
			Cooldown:            cfg.AuditBreakerCooldown,
		}, logger)
	}
	sink = audit.ObservedSink{Sink: sink, Observer: metrics}

	uploads := auditablehttp.Options{UploadMaxBytes: cfg.UploadMaxBytes}
	brandSvc := brands.NewService(pgstore.New(pool, brands.Table), sink, logger)
	regionSvc := regions.NewService(pgstore.New(pool, regions.Table), sink, logger)
	productSvc := products.NewService(pgstore.New(pool, products.Table), sink, logger)

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Sessions:           session.NewStore(redisClient, session.Options{Prefix: cfg.SessionPrefix, CookieName: cfg.SessionCookie, TTL: cfg.SessionTTL}),
		AuditSink:          sink,
		Metrics:            metrics,
		BrandHandler:       brands.NewHandler(logger, brandSvc, rbacMiddleware, uploads),
		RegionHandler:      regions.NewHandler(logger, regionSvc, rbacMiddleware, uploads),
		ProductHandler:     products.NewHandler(logger, productSvc, rbacMiddleware, uploads),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(postgresSink), audit.NewExporter(), sink, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, engine, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Checks: map[string]app.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return engine.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
