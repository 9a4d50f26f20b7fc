package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/taskhive/taskhive/pkg/accounts"
	"github.com/taskhive/taskhive/pkg/api"
	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/cache"
	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/session"
	"github.com/taskhive/taskhive/pkg/store"
	"github.com/taskhive/taskhive/pkg/throttle"
	"github.com/taskhive/taskhive/pkg/workspaces"
)

const cachePrefix = "taskhive"

func main() {
	startupLog := logrus.New()
	startupLog.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		startupLog.WithError(err).Fatal("failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.Open(ctx, cfg.Storage.PostgresURL)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pg.Close()

	redisOpts, err := redis.ParseURL(cfg.Storage.RedisURL)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to parse redis URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		startupLog.WithError(err).Fatal("failed to connect to redis")
	}

	// Rebuild the audit mirror of the static permission catalog.
	if err := store.SeedRolePermissions(ctx, pg); err != nil {
		startupLog.WithError(err).Fatal("failed to seed role permissions")
	}

	versions := cache.NewVersionStore(redisClient, cachePrefix, metrics)
	bus := cache.NewBus(versions, redisClient, logger, metrics)
	local, err := cache.NewLocal(cfg.Cache.LocalSize)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create local cache")
	}
	reader := cache.NewReader(redisClient, versions, local, cachePrefix, cfg.Cache.TTL, metrics)
	listener := cache.NewListener(redisClient, local, cachePrefix, logger, metrics)

	resolver := authz.NewResolver(
		pg,
		authz.NewCachedWorkspaceSource(pg, reader),
		authz.NewCachedMembershipSource(pg, reader),
		metrics,
	)

	tokens, err := session.NewTokens([]byte(cfg.Auth.Secret), cfg.Auth.AccessTokenTTL)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create token service")
	}
	sessions, err := session.NewManager(tokens, pg, pg, cfg.Auth.RefreshTokenTTL, logger, metrics)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create session manager")
	}

	guard, err := throttle.NewGuard(pg,
		throttle.Limit{Max: cfg.Throttle.LoginMaxAttempts, Window: cfg.Throttle.LoginWindow},
		throttle.Limit{Max: cfg.Throttle.ResetMaxAttempts, Window: cfg.Throttle.ResetWindow},
		throttle.Limit{Max: cfg.Throttle.ResetIPMaxAttempts, Window: cfg.Throttle.ResetWindow},
		metrics,
	)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create throttle guard")
	}

	var google *session.GoogleVerifier
	if cfg.Auth.GoogleClientID != "" {
		google, err = session.NewGoogleVerifier(ctx, cfg.Auth.GoogleClientID)
		if err != nil {
			startupLog.WithError(err).Fatal("failed to create google verifier")
		}
	}

	accountsSvc, err := accounts.NewService(pg, sessions, guard, google, []byte(cfg.Auth.Secret), logger)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create accounts service")
	}
	workspacesSvc, err := workspaces.NewService(pg, pg, pg, pg, bus, logger)
	if err != nil {
		startupLog.WithError(err).Fatal("failed to create workspaces service")
	}

	janitor := session.NewJanitor(pg, pg, logger)
	if err := janitor.Start(); err != nil {
		startupLog.WithError(err).Fatal("failed to start janitor")
	}
	defer janitor.Stop()

	apiServer := api.NewServer(accountsSvc, workspacesSvc, sessions, tokens, resolver, logger)
	mainServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      healthRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Consumes invalidation broadcasts from other instances.
		err := listener.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		startupLog.WithField("addr", mainServer.Addr).Info("api server listening")
		if err := mainServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		startupLog.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := mainServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	startupLog.Info("taskhive started")
	if err := g.Wait(); err != nil {
		startupLog.WithError(err).Fatal("shutdown with error")
	}
	startupLog.Info("taskhive stopped")
}
