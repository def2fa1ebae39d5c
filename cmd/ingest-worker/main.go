// Package main is the entry point for the ingest worker Lambda function.
//
// The worker consumes evaluation messages from the SQS queue. A scheduled
// refresh message makes it pull the upstream public-safety feed, validate and
// store the records, and re-evaluate; any other message re-evaluates stored
// data for the requested scope. Partial batch responses let SQS retry only
// the messages that failed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"riskwatch/internal/config"
	"riskwatch/internal/db"
	"riskwatch/internal/engine"
	"riskwatch/internal/external"
	"riskwatch/internal/ingest"
	"riskwatch/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("ingest worker initializing (cold start)")

	worker, cleanup, err := buildWorker(context.Background(), logger)
	if err != nil {
		logger.Error("cold start failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	lambda.Start(worker.HandleSQS)
}

func buildWorker(ctx context.Context, logger *slog.Logger) (*ingest.Worker, func(), error) {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	repos := db.NewRegistry(pool)

	evaluator, err := engine.NewEvaluator(cfg.Engine.EngineOptions(), logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("building evaluator: %w", err)
	}

	var publisher *metrics.Publisher
	var workerMetrics ingest.WorkerMetrics
	var sourceMetrics ingest.SourceMetrics
	if cfg.AWS.MetricsEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}
		publisher = metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), logger)
		workerMetrics = publisher
		sourceMetrics = publisher
	}

	var source *ingest.SourceClient
	if cfg.Ingest.SourceURL != "" {
		base := external.NewBaseClient(
			&http.Client{Timeout: cfg.Ingest.SourceTimeout},
			"public-safety-feed",
			external.DefaultRetryPolicy(),
			"riskwatch-ingest/"+cfg.Build.Version,
		)
		source = ingest.NewSourceClient(base, cfg.Ingest.SourceURL, logger, sourceMetrics)
	}

	worker := ingest.NewWorker(
		repos.Indicators(), repos.Results(), evaluator, source, workerMetrics, logger,
	)

	cleanup := func() {
		if publisher != nil {
			publisher.Close()
		}
		pool.Close()
	}
	return worker, cleanup, nil
}
