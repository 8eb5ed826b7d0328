// Package main is the entrypoint for the Weather Fetcher Lambda function.
//
// The fetcher consumes FetchJob batches from the fetch-jobs SQS queue. For
// each job it resolves coordinates through the permanent geocode cache,
// fetches current + forecast weather from OpenWeatherMap, overwrites the
// TTL-bounded weather bundle in the KV store, and enqueues a
// WeatherReadyEvent. It returns a partial batch response so SQS redelivers
// only the messages that failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"weatherscape/internal/config"
	"weatherscape/internal/db"
	"weatherscape/internal/fetcher"
	"weatherscape/internal/queue"
	"weatherscape/internal/telemetry"
	"weatherscape/internal/types"
	"weatherscape/internal/weather"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Service, cfg.Environment, cfg.LogLevel)
	logger.Info("weather fetcher initializing",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	kv := db.NewStore(pool)
	weatherRepo, err := db.NewWeatherRepository(kv)
	if err != nil {
		logger.Error("failed to create weather repository", "error", err)
		os.Exit(1)
	}
	status := db.NewStatusRepository(kv)
	publisher := queue.NewPublisher(sqsClient, cfg.AWS, logger)
	provider := weather.NewClient(nil, cfg.Weather, logger)

	var metrics types.StageMetrics = types.NoopStageMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = telemetry.NewCloudWatchStageMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
	}

	f := fetcher.New(fetcher.Config{
		Provider: provider,
		Cache:    weatherRepo,
		Sender:   publisher,
		Status:   status,
		Metrics:  metrics,
		CacheTTL: cfg.Weather.CacheTTL,
		Logger:   logger,
	})

	logger.Info("weather fetcher initialized",
		"weather_ready_queue", cfg.AWS.WeatherReadyQueue,
		"cache_ttl", cfg.Weather.CacheTTL.String(),
		"has_credentials", provider.HasCredentials(),
	)

	lambda.Start(f.HandleBatch)
}
