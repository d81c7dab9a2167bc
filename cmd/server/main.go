package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urlmint/urlmint/internal/config"
	"github.com/urlmint/urlmint/internal/events"
	"github.com/urlmint/urlmint/internal/infra"
	"github.com/urlmint/urlmint/internal/observability"
	"github.com/urlmint/urlmint/internal/server"
	"github.com/urlmint/urlmint/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "urlmint",
		Environment:  cfg.Server.Environment,
		OTLPEndpoint: cfg.App.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger

	dbURL := cfg.Database.ConnectionString()
	if err := infra.RunMigrations(dbURL, cfg.App.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		return
	}

	db, err := infra.NewPostgresPool(ctx, dbURL)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		return
	}
	defer db.Close()
	logger.Info("database connected")

	deps := server.Deps{DB: db, Obs: obs}

	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		// Cache is an accelerator, not a dependency the service cannot
		// live without.
		logger.Warn("cache unavailable, running without it", slog.String("error", err.Error()))
	} else {
		deps.Cache = cache
		defer cache.Close()
		logger.Info("cache connected")
	}

	if cfg.Broker.URL != "" {
		conn, err := infra.NewBrokerConn(cfg.Broker.URL)
		if err != nil {
			logger.Warn("broker unavailable, click events disabled", slog.String("error", err.Error()))
		} else {
			defer conn.Close()
			pub, err := events.NewPublisher(conn, cfg.Broker.ClickQueue)
			if err != nil {
				logger.Warn("failed to open publisher channel", slog.String("error", err.Error()))
			} else {
				deps.Publisher = pub
				defer pub.Close()
				logger.Info("click event publisher ready", slog.String("queue", cfg.Broker.ClickQueue))
			}
		}
	}

	store := server.NewStore(cfg, deps)
	sweeper := service.NewSweeper(store, cfg.App.SweepInterval, logger, obs.Metrics)
	srv := server.NewServer(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
	} else {
		logger.Info("server exited gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obs.Shutdown(shutdownCtx)
}
