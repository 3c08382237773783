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

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"litwatch/internal/adapter/httpapi"
	"litwatch/internal/di"
	"litwatch/internal/infra"
	"litwatch/internal/infra/config"
	"litwatch/internal/infra/logger"
	"litwatch/internal/infra/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize OpenTelemetry
	otelCfg := telemetry.ConfigFromEnv()
	otelShutdown, err := telemetry.InitProvider(ctx, otelCfg)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}

	// Initialize structured logger
	log := logger.NewWithOTel(otelCfg.ServiceName, otelCfg.Enabled)
	slog.SetDefault(log)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	log.InfoContext(ctx, "configuration loaded",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"generation_model", cfg.LLM.GenerationModel,
		"embedding_model", cfg.LLM.EmbeddingModel)

	// Migrate schema before opening the pool
	if err := infra.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		log.ErrorContext(ctx, "failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg.Database.URL, infra.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Wire everything
	components := di.NewApplicationComponents(cfg, pool, log)

	// The worker executes queued runs; the API only enqueues and reads.
	components.Worker.Start()
	defer components.Worker.Stop()

	e := httpapi.NewRouter(httpapi.RouterConfig{
		Runs:        components.RunHandler,
		Config:      components.ConfigHandler,
		Health:      components.HealthHandler,
		Logger:      log,
		ServiceName: cfg.Telemetry.ServiceName,
		OTelEnabled: otelCfg.Enabled,
	})

	// h2c keeps HTTP/2 available without TLS termination in this process.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h2c.NewHandler(e, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.InfoContext(ctx, "starting server", "addr", srv.Addr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server exited properly")
}
