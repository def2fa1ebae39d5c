// Package main is the entry point for the RiskWatch API server.
//
// It loads configuration (with SSM secret resolution outside local mode),
// connects the Postgres pool, wires the engine runtime and domain handlers
// onto the core chassis, and serves HTTP with graceful shutdown on SIGINT
// and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"riskwatch/internal/api/handlers"
	"riskwatch/internal/config"
	"riskwatch/internal/core"
	"riskwatch/internal/db"
	"riskwatch/internal/engine"
	"riskwatch/internal/metrics"
	"riskwatch/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("riskwatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	repos := db.NewRegistry(pool)

	srv, err := core.NewServer(cfg, repos, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// CloudWatch publication and the SQS trigger are both optional; handlers
	// treat nil collaborators as "don't record" / "don't enqueue".
	var ingestMetrics handlers.IngestMetrics
	var evalObserver handlers.EvalObserver
	var freshnessMetrics core.FreshnessMetrics
	var trigger handlers.EvalTrigger
	if cfg.AWS.MetricsEnabled || cfg.AWS.EvalQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS SDK config: %w", err)
		}
		if cfg.AWS.MetricsEnabled {
			publisher := metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), logger)
			defer publisher.Close()
			srv.Metrics = publisher
			ingestMetrics = publisher
			evalObserver = publisher
			freshnessMetrics = publisher
		}
		if cfg.AWS.EvalQueueURL != "" {
			trigger = queue.NewEvalTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS, logger)
		}
	}

	var cache *engine.ResultCache
	if cfg.Engine.CacheEnabled {
		cache = engine.NewResultCache()
	}
	runtime, err := handlers.NewEngineRuntime(cfg.Engine.EngineOptions(), logger, cache)
	if err != nil {
		return fmt.Errorf("building engine runtime: %w", err)
	}

	indicatorHandler := handlers.NewIndicatorHandler(
		repos.Indicators(), trigger, ingestMetrics,
		srv.Validator, logger, cfg.Ingest.MaxBatchRecords,
	)
	evaluationHandler := handlers.NewEvaluationHandler(
		repos.Indicators(), repos.Results(), runtime, evalObserver,
		srv.Validator, logger,
	)
	settingsHandler := handlers.NewSettingsHandler(runtime, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		indicatorHandler.RegisterRoutes,
		evaluationHandler.RegisterRoutes,
		settingsHandler.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes,
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		&core.FreshnessProbe{Indicators: repos.Indicators(), MaxLagPeriods: 2, Metrics: freshnessMetrics},
	)

	srv.MountRoutes()

	return serve(srv, cfg, logger)
}

// newPool builds the pgx pool with the configured tuning and verifies
// connectivity before the server accepts traffic.
func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// serve runs the HTTP server until a shutdown signal or server error.
func serve(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured logger for the given level string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
