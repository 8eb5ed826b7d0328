// Package main is the entrypoint for the ZIP Scheduler Lambda function.
//
// The scheduler fires on an EventBridge cron schedule. Each invocation reads
// the active-ZIP set from the KV store and enqueues one FetchJob per ZIP on
// the fetch-jobs queue, minting a fresh trace per ZIP.
//
// Cold start:
//  1. Load and validate configuration.
//  2. Initialize the structured JSON logger.
//  3. Load the AWS SDK configuration and build the SQS/CloudWatch clients.
//  4. Connect the Postgres KV pool and apply the schema.
//  5. Wire the ZIP repository, publisher, status repository, and metrics.
//  6. Register the handler and call lambda.Start.
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
	"weatherscape/internal/queue"
	"weatherscape/internal/scheduler"
	"weatherscape/internal/telemetry"
	"weatherscape/internal/types"
)

// Handler adapts the scheduler to the Lambda invocation signature. The
// EventBridge payload carries no information the scheduler needs.
type Handler struct {
	scheduler *scheduler.Scheduler
}

// Handle runs one scheduling tick.
func (h *Handler) Handle(ctx context.Context) (types.StatusRecord, error) {
	return h.scheduler.Tick(ctx)
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Service, cfg.Environment, cfg.LogLevel)
	logger.Info("zip scheduler initializing",
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

	handler := &Handler{scheduler: scheduler.New(scheduler.Config{
		Zips:    zips,
		Sender:  publisher,
		Status:  status,
		Metrics: metrics,
		Logger:  logger,
	})}

	logger.Info("zip scheduler initialized",
		"fetch_jobs_queue", cfg.AWS.FetchJobsQueue,
		"default_zip", cfg.Weather.DefaultZip,
	)

	lambda.Start(handler.Handle)
}
