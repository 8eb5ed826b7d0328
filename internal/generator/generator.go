// Package generator implements the final pipeline stage: consume
// GenerationJobs, render the landscape image for (zip, format) from the
// cached weather bundle, and upload the artifact.
//
// Generation is idempotent per (zip, format): the artifact key is canonical
// and a later write replaces the earlier one, so duplicate deliveries and
// redelivered fan-outs converge on the same object.
//
// An absent or expired weather bundle is a retryable condition: redelivery
// buys time for the next fetch cycle to repopulate the cache.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"weatherscape/internal/queue"
	"weatherscape/internal/render"
	"weatherscape/internal/types"
)

const defaultConcurrency = 4

// WeatherReader reads the cached weather bundle. Implemented by
// db.WeatherRepository.
type WeatherReader interface {
	GetWeather(ctx context.Context, zip string) (types.WeatherBundle, bool, error)
}

// ArtifactWriter uploads rendered images. Implemented by artifacts.Store.
type ArtifactWriter interface {
	Put(ctx context.Context, body []byte, spec types.FormatSpec, meta types.ArtifactMetadata) (string, error)
}

// MetadataWriter mirrors artifact metadata for the status surface.
// Implemented by db.StatusRepository.
type MetadataWriter interface {
	PutArtifactMeta(ctx context.Context, meta types.ArtifactMetadata) error
}

// StatusWriter persists per-stage run summaries. Implemented by
// db.StatusRepository.
type StatusWriter interface {
	PutStatus(ctx context.Context, stage types.Stage, rec types.StatusRecord) error
}

// Generator consumes GenerationJob batches from SQS.
type Generator struct {
	weather     WeatherReader
	renderer    render.Renderer
	artifacts   ArtifactWriter
	metadata    MetadataWriter
	status      StatusWriter
	metrics     types.StageMetrics
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Config holds the dependencies for creating a Generator.
type Config struct {
	Weather     WeatherReader
	Renderer    render.Renderer
	Artifacts   ArtifactWriter
	Metadata    MetadataWriter
	Status      StatusWriter
	Metrics     types.StageMetrics
	Concurrency int
	Logger      *slog.Logger
}

// New creates a Generator with the given configuration.
func New(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = types.NoopStageMetrics{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Generator{
		weather:     cfg.Weather,
		renderer:    cfg.Renderer,
		artifacts:   cfg.Artifacts,
		metadata:    cfg.Metadata,
		status:      cfg.Status,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleBatch processes one SQS batch and returns the partial batch response.
func (g *Generator) HandleBatch(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	startedAt := g.now().UTC()
	outcome := &queue.BatchOutcome{}

	if len(event.Records) > 0 {
		if lag, ok := queue.MessageLag(event.Records[0], g.now()); ok {
			g.metrics.RecordQueueLag(ctx, types.StageGenerator, lag)
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, record := range event.Records {
		record := record
		eg.Go(func() error {
			g.processRecord(gctx, record, outcome)
			return nil
		})
	}
	_ = eg.Wait()

	rec := outcome.StatusRecord(startedAt, len(event.Records))
	if err := g.status.PutStatus(ctx, types.StageGenerator, rec); err != nil {
		g.logger.WarnContext(ctx, "failed to write generator status", "error", err)
	}
	g.metrics.RecordBatch(ctx, types.StageGenerator, rec.SuccessCount, rec.ErrorCount)

	g.logger.InfoContext(ctx, "generation batch completed",
		"total", len(event.Records),
		"succeeded", rec.SuccessCount,
		"errors", rec.ErrorCount,
	)
	return outcome.Response(), nil
}

// processRecord renders and uploads one (zip, format) artifact.
func (g *Generator) processRecord(ctx context.Context, record events.SQSMessage, outcome *queue.BatchOutcome) {
	var job types.GenerationJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		g.logger.ErrorContext(ctx, "discarding unparseable generation job",
			"message_id", record.MessageId, "error", err)
		outcome.AckMalformed(err)
		return
	}
	if err := types.ValidateMessage(job); err != nil {
		g.logger.ErrorContext(ctx, "discarding invalid generation job",
			"message_id", record.MessageId, "zip_code", job.Zip, "error", err)
		outcome.AckMalformed(err)
		return
	}

	span := job.Trace.Child()
	logger := g.logger.With(
		"zip_code", job.Zip,
		"format", string(job.Format),
		"trace_id", span.TraceID,
		"span_id", span.SpanID,
	)

	spec, ok := types.LookupFormat(job.Format)
	if !ok {
		// An unknown format can never render; redelivery would loop forever.
		err := types.NewAppError(types.ErrCodeValidationUnknownFormat,
			fmt.Sprintf("unknown format %q", job.Format), nil)
		logger.ErrorContext(ctx, "discarding job for unknown format", "error", err)
		outcome.AckMalformed(err)
		return
	}

	bundle, found, err := g.weather.GetWeather(ctx, job.Zip)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read weather bundle", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}
	if !found {
		err := types.NewAppError(types.ErrCodePipelineStaleWeather,
			fmt.Sprintf("no cached weather for %s", job.Zip), nil)
		logger.WarnContext(ctx, "weather bundle absent or expired, deferring", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	body, err := g.renderer.Render(bundle, spec)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render landscape", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	meta := types.ArtifactMetadata{
		GeneratedAt:   g.now().UTC(),
		Latitude:      job.Lat,
		Longitude:     job.Lon,
		ZipCode:       job.Zip,
		ByteSize:      len(body),
		FormatVariant: job.Format,
	}
	key, err := g.artifacts.Put(ctx, body, spec, meta)
	if err != nil {
		logger.ErrorContext(ctx, "failed to upload artifact", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	// Metadata mirror feeds the status surface only; the artifact is the
	// source of truth and is already durable.
	if err := g.metadata.PutArtifactMeta(ctx, meta); err != nil {
		logger.WarnContext(ctx, "failed to mirror artifact metadata", "error", err)
	}

	outcome.Ack()
	logger.InfoContext(ctx, "landscape generated",
		"key", key, "byte_size", meta.ByteSize)
}
