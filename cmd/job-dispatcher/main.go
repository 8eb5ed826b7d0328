// Package main is the entrypoint for the Job Dispatcher Lambda function.
//
// The dispatcher consumes WeatherReadyEvent batches from the weather-ready
// SQS queue and fans each event out into one GenerationJob per format enabled
// for the ZIP. An event is acked only after every derived job is enqueued.
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
	"weatherscape/internal/dispatcher"
	"weatherscape/internal/queue"
	"weatherscape/internal/telemetry"
	"weatherscape/internal/types"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Service, cfg.Environment, cfg.LogLevel)
	logger.Info("job dispatcher initializing",
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
	zips := db.NewZipRepository(kv, cfg.Weather.DefaultZip)
	status := db.NewStatusRepository(kv)
	publisher := queue.NewPublisher(sqsClient, cfg.AWS, logger)

	var metrics types.StageMetrics = types.NoopStageMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = telemetry.NewCloudWatchStageMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
	}

	d := dispatcher.New(dispatcher.Config{
		Formats: zips,
		Sender:  publisher,
		Status:  status,
		Metrics: metrics,
		Logger:  logger,
	})

	logger.Info("job dispatcher initialized",
		"landscape_jobs_queue", cfg.AWS.LandscapeJobsQueue,
	)

	lambda.Start(d.HandleBatch)
}
