package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rangoon-shop/rangoon-admin/cmd/rangoonctl/cli"
	"github.com/rangoon-shop/rangoon-admin/internal/app"
	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable/pgstore"
	"github.com/rangoon-shop/rangoon-admin/internal/catalog/brands"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/cache"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/db"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
	"github.com/rangoon-shop/rangoon-admin/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Backends, error) {
		return open(ctx, cfg)
	}, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("rangoonctl", slog.Any("error", err))
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg *app.Config) (*cli.Backends, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	jobsCLI := cli.NewJobsCLI(redisOpts.AsynqOpt())
	return &cli.Backends{
		Migrate:     func(ctx context.Context) error { return db.Migrate(ctx, pool) },
		Permissions: rbac.NewPostgresStore(pool),
		Brands:      pgstore.New(pool, brands.Table),
		Sink:        audit.NewPostgresSink(pool),
		Redis:       redisClient,
		Sessions: session.NewStore(redisClient, session.Options{
			Prefix:     cfg.SessionPrefix,
			CookieName: cfg.SessionCookie,
			TTL:        cfg.SessionTTL,
		}),
		Jobs: jobsCLI,
		Close: func() {
			_ = jobsCLI.Close()
			_ = redisClient.Close()
			pool.Close()
		},
	}, nil
}
