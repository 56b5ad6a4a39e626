package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convoy-fleet/convoy/internal/app"
	"github.com/convoy-fleet/convoy/internal/authz"
	"github.com/convoy-fleet/convoy/internal/platform/cache"
	"github.com/convoy-fleet/convoy/internal/platform/db"
	"github.com/convoy-fleet/convoy/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The engine stays correct without redis; cross-process
		// invalidation just falls back to the TTL.
		logger.Warn("redis unavailable, continuing without invalidation broadcast", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo := authz.NewRepository(pool)
	catalog, err := repo.Catalog(ctx)
	if err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	if catalog.Len() == 0 {
		logger.Warn("permission catalog is empty, every non-superadmin check will deny")
	}

	aliases, err := authz.LoadAliasTable(cfg.AuthzAliasPath)
	if err != nil {
		logger.Error("load alias table", slog.String("path", cfg.AuthzAliasPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("alias table loaded", slog.Int("version", aliases.Version()))

	permCache := authz.NewCache(cfg.AuthzCacheTTL)
	broadcaster := authz.NewBroadcaster(redisClient, permCache, logger)
	if err := broadcaster.Listen(ctx); err != nil {
		logger.Warn("invalidation listener", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	authzService := authz.NewService(catalog, aliases, repo, repo, permCache, auditLogger, broadcaster, logger)
	guard := authz.Guard{Service: authzService, Logger: logger}
	authzHandler := authz.NewHandler(logger, authzService, guard)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Identity: app.HeaderIdentity{
			UserHeader: cfg.PrincipalHeaderUser,
			RoleHeader: cfg.PrincipalHeaderRole,
		},
		AuthzHandler: authzHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
