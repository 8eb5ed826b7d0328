// Package main is the entrypoint for the Landscape Generator Lambda function.
//
// The generator consumes GenerationJob batches from the landscape-jobs SQS
// queue, renders each (zip, format) image from the cached weather bundle,
// uploads the artifact to S3 at the canonical key, and mirrors its metadata
// into the KV store for the status surface.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"weatherscape/internal/artifacts"
	"weatherscape/internal/config"
	"weatherscape/internal/db"
	"weatherscape/internal/generator"
	"weatherscape/internal/render"
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
	logger.Info("landscape generator initializing",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			o.UsePathStyle = true
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
	store := artifacts.NewStore(s3Client, cfg.AWS.ImageBucket, logger)

	var metrics types.StageMetrics = types.NoopStageMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = telemetry.NewCloudWatchStageMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
	}

	g := generator.New(generator.Config{
		Weather:   weatherRepo,
		Renderer:  render.NewLandscapeRenderer(),
		Artifacts: store,
		Metadata:  status,
		Status:    status,
		Metrics:   metrics,
		Logger:    logger,
	})

	logger.Info("landscape generator initialized",
		"image_bucket", cfg.AWS.ImageBucket,
	)

	lambda.Start(g.HandleBatch)
}
